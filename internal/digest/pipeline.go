// internal/digest/pipeline.go
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BookScanner lists the books added within a trailing window.
type BookScanner interface {
	ScanRecentlyAdded(ctx context.Context, window time.Duration) ([]catalog.Book, error)
}

// Summary reports what one run did.
type Summary struct {
	Books      int
	Categories int
	Submitted  int
}

// Pipeline runs scan, aggregate and dispatch in sequence.
type Pipeline struct {
	scanner    BookScanner
	aggregator *Aggregator
	dispatcher *Dispatcher
	window     time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewPipeline(scanner BookScanner, aggregator *Aggregator, dispatcher *Dispatcher, window time.Duration, logger *slog.Logger) *Pipeline {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Pipeline{
		scanner:    scanner,
		aggregator: aggregator,
		dispatcher: dispatcher,
		window:     window,
		logger:     logging.Default(logger),
		tracer:     otel.Tracer("libraryservice/digest"),
	}
}

// Run performs one pass. A failed catalog scan or a context canceled before
// dispatch is returned as an error; aggregation and publish failures are
// logged per category.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	ctx, span := p.tracer.Start(ctx, "digest.run",
		trace.WithAttributes(attribute.String("window", p.window.String())),
	)
	defer span.End()

	logger := logging.For(ctx, p.logger, "digest", "run")
	started := time.Now()

	books, err := p.scanner.ScanRecentlyAdded(ctx, p.window)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "digest run aborted", "error", err)
		return Summary{}, fmt.Errorf("failed to scan catalog: %w", err)
	}

	var summary Summary
	summary.Books = len(books)
	if len(books) > 0 {
		recipients := p.aggregator.BuildRecipientMap(ctx, books)
		summary.Categories = len(recipients)
		// Categories lost to cancellation would go out with no recipients.
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			logger.WarnContext(ctx, "digest run canceled before dispatch", "books", summary.Books)
			return summary, fmt.Errorf("digest run canceled: %w", err)
		}
		summary.Submitted = p.dispatcher.Dispatch(ctx, recipients, books)
	}

	span.SetAttributes(
		attribute.Int("books", summary.Books),
		attribute.Int("jobs", summary.Submitted),
	)
	logger.InfoContext(ctx, "digest run completed",
		"books", summary.Books,
		"categories", summary.Categories,
		"jobs_submitted", summary.Submitted,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return summary, nil
}
