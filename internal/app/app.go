// Package app builds the components shared by the lending and digest binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/config"
	"libraryservice/internal/digest"
	"libraryservice/internal/membership"
	"libraryservice/internal/publish"
	"libraryservice/internal/storage/memory"
	"libraryservice/internal/storage/postgres"
	"libraryservice/internal/workerpool"
)

// Storage is every repository the services need, served by one backend.
type Storage interface {
	catalog.Repository
	membership.Repository
	circulation.Store
}

// OpenStorage selects the backend named by cfg.Storage. The returned func
// releases its resources.
func OpenStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (Storage, func() error, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.New(cfg.LockTimeout), func() error { return nil }, nil
	}

	db, err := postgres.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("database schema ensured")
	}
	logger.Info("connected to database", "driver", cfg.DBDriver)
	return postgres.NewStore(db, cfg.LockTimeout), db.Close, nil
}

// NewPublisher posts to the broker at cfg.PublishURL, or logs messages when
// no broker is configured.
func NewPublisher(cfg config.Config, logger *slog.Logger) publish.Publisher {
	if cfg.PublishURL == "" {
		logger.Warn("PUBLISH_URL not set; messages are written to the log")
		return publish.NewLogPublisher(logger)
	}
	return publish.NewHTTPPublisher(cfg.PublishURL, publish.WithTimeout(cfg.PublishTimeout))
}

// NewPool sizes the background worker pool from cfg.
func NewPool(cfg config.Config, logger *slog.Logger) (*workerpool.Pool, error) {
	pool, err := workerpool.New(workerpool.Options{
		CoreWorkers: cfg.PoolCoreWorkers,
		MaxWorkers:  cfg.PoolMaxWorkers,
		KeepAlive:   cfg.PoolKeepAlive,
		Name:        "background",
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return pool, nil
}

// NewDigest assembles the scan, aggregate and dispatch pipeline.
func NewDigest(cfg config.Config, store Storage, publisher publish.Publisher, executor workerpool.Executor, logger *slog.Logger) *digest.Pipeline {
	return digest.NewPipeline(
		catalog.NewScanner(store, cfg.DigestPageSize, nil),
		digest.NewAggregator(store, cfg.DigestPageSize, logger),
		digest.NewDispatcher(publisher, executor, cfg.DigestQueue, logger),
		cfg.DigestWindow,
		logger,
	)
}
