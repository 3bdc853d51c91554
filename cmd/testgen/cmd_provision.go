package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"testgen/internal/health"
	"testgen/internal/provision"
	"testgen/internal/storage"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Wait for the datastores and create the application user, database and schema",
	Long: `Waits until PostgreSQL and MongoDB answer their health checks, then creates
test_gen_user, test_gen_db, the test_cases table, the test_patterns collection
and its unique pattern_name index. Objects that already exist are left alone.

Requires POSTGRES_PASSWORD and MONGO_PASSWORD.`,
	RunE: runProvision,
}

var waitCmd = &cobra.Command{
	Use:       "wait [postgres|mongodb]...",
	Short:     "Block until the datastores are healthy",
	ValidArgs: []string{"postgres", "mongodb"},
	Args:      cobra.OnlyValidArgs,
	RunE:      runWait,
}

func poller() *health.Poller {
	return health.NewPoller(health.Policy{
		Interval: cfg.HealthConfig.Interval,
		Timeout:  cfg.HealthConfig.Timeout,
		Retries:  cfg.HealthConfig.Retries,
	}, log, prom)
}

// datastores открывает оба хранилища; закрытие на вызывающем
func datastores() (*storage.Postgres, *storage.Mongo, error) {
	pg, err := storage.NewPostgres(cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	mg, err := storage.NewMongo(cfg.MongoDBURL, log)
	if err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, mg, nil
}

func runProvision(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateProvisioning(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	pg, mg, err := datastores()
	if err != nil {
		return err
	}
	defer pg.Close()
	defer mg.Close(context.Background())

	p := poller()
	return provision.NewProvisioner(log,
		provision.NewPostgresInitializer(pg.GetDB(), cfg.DatabaseURL, cfg.PostgresPassword, p, log),
		provision.NewMongoInitializer(mg.Client(), cfg.MongoPassword, p, log),
	).Run(ctx)
}

func runWait(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"postgres", "mongodb"}
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	pg, mg, err := datastores()
	if err != nil {
		return err
	}
	defer pg.Close()
	defer mg.Close(context.Background())

	probes := map[string]health.Probe{
		"postgres": health.NewPostgresProbe(pg.GetDB()),
		"mongodb":  health.NewMongoProbe(mg.Client()),
	}

	p := poller()
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range args {
		g.Go(func() error {
			return p.WaitHealthy(gctx, target, probes[target])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Datastores are healthy", zap.Strings("targets", args))
	fmt.Fprintln(cmd.OutOrStdout(), "healthy")
	return nil
}
