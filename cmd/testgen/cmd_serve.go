package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testgen/internal/artifact"
	"testgen/internal/health"
	"testgen/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, readiness, metrics and the placeholder page",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	pg, mg, err := datastores()
	if err != nil {
		return err
	}
	defer pg.Close()
	defer mg.Close(context.Background())

	store, err := openArtifacts()
	if err != nil {
		return err
	}
	defer store.Close()

	sweeper := artifact.NewSweeper(store, cfg.ArtifactConfig.GCSchedule, log)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	page, err := ui.Render()
	if err != nil {
		return err
	}

	srv := health.NewServer(cfg.HealthPort, log, map[string]health.Probe{
		"postgres": health.NewPostgresProbe(pg.GetDB()),
		"mongodb":  health.NewMongoProbe(mg.Client()),
	},
		health.WithMetricsHandler(prom.Handler()),
		health.WithPage("/", page),
		health.WithProbeTimeout(cfg.HealthConfig.Timeout),
	)

	// serve живет до сигнала, --timeout к нему не применяется
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Failed to stop server", zap.Error(err))
		return err
	}
	return <-errCh
}
