// Package main запускает testgen: инициализацию хранилищ, гейты качества и публикацию релиза.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"testgen/internal/config"
	"testgen/internal/gate"
	"testgen/internal/metrics"
	"testgen/internal/storage"
	"testgen/pkg/logger"
)

var (
	// Глобальные флаги
	verbose  bool
	timeout  time.Duration
	repoDir  string
	workflow string

	cfg  *config.Config
	log  *zap.Logger
	prom *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "testgen",
	Short: "Provisioning and CI gating for the Test Generation Platform",
	Long: `testgen provisions PostgreSQL and MongoDB, runs the backend and frontend
quality gates, enforces coverage thresholds and publishes the release for
commits pushed to main.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := logger.ParseLevel(cfg.LogLevel)
		if verbose || cfg.Debug {
			level = zapcore.DebugLevel
		}
		log = logger.NewWithLevel(level)
		prom = metrics.New()
		log.Debug("Configuration loaded", zap.Any("config", cfg.AsMap(storage.RedactURL)))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall operation timeout")
	rootCmd.PersistentFlags().StringVarP(&repoDir, "repo", "C", ".", "Repository root the gates run in")
	rootCmd.PersistentFlags().StringVar(&workflow, "workflow", "", "YAML file overriding gate definitions")

	rootCmd.AddCommand(provisionCmd, waitCmd)
	rootCmd.AddCommand(gateCmd, pipelineCmd, releaseCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(composeCmd, uiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(artifactsCmd)
}

// signalContext отменяется по SIGINT и SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// commandContext контекст команды с таймаутом и отменой по сигналу
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signalContext(parent)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// exitCode код завершения процесса: код упавшего инструмента или 1
func exitCode(err error) int {
	var se *gate.StageError
	if errors.As(err, &se) && se.ExitCode > 0 {
		return se.ExitCode
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
