// cmd/lending/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libraryservice/internal/app"
	"libraryservice/internal/audit"
	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/config"
	"libraryservice/internal/digest"
	"libraryservice/internal/httpapi"
	"libraryservice/internal/logging"
	"libraryservice/internal/membership"
	"libraryservice/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("lending service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel).With("service", cfg.ServiceName)
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
	publisher := app.NewPublisher(cfg, logger)

	recorder := func(service string) *audit.Recorder {
		return audit.NewRecorder(service, publisher, pool, cfg.LoggingQueue, logger)
	}

	scheduler, err := digest.NewScheduler(cfg.DigestSchedule, app.NewDigest(cfg, store, publisher, pool, logger), logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Catalog:     catalog.NewMonitor(catalog.NewService(store, logger, nil), recorder("catalog")),
			Membership:  membership.NewMonitor(membership.NewService(store, logger, nil), recorder("membership")),
			Circulation: circulation.NewMonitor(circulation.NewService(store, logger, nil), recorder("circulation")),
			Logger:      logger,
			RateLimit:   cfg.RateLimitRPS,
			RateBurst:   cfg.RateBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting lending service", "port", cfg.Port, "storage", cfg.Storage, "digest_schedule", cfg.DigestSchedule)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var errs []error
	select {
	case err := <-serveErr:
		if err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
