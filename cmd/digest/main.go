// cmd/digest/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libraryservice/internal/app"
	"libraryservice/internal/config"
	"libraryservice/internal/logging"
	"libraryservice/internal/telemetry"
)

// Runs a single digest pass and exits, for use from an external scheduler.
func main() {
	if err := run(); err != nil {
		slog.Error("digest run failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel).With("service", cfg.ServiceName, "component", "digest")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	store, closeStore, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	pool, err := app.NewPool(cfg, logger)
	if err != nil {
		return err
	}

	summary, runErr := app.NewDigest(cfg, store, app.NewPublisher(cfg, logger), pool, logger).Run(ctx)

	// Submitted jobs publish in the background; wait for them before exiting.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	errs := []error{runErr}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	logger.Info("digest run finished",
		"books", summary.Books,
		"categories", summary.Categories,
		"submitted", summary.Submitted,
	)
	return errors.Join(errs...)
}
