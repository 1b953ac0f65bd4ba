// internal/catalog/scanner.go
package catalog

import (
	"context"
	"fmt"
	"time"

	"libraryservice/internal/paging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Scanner pages through books registered within a trailing window.
type Scanner struct {
	repo     Repository
	pageSize int
	now      func() time.Time
	tracer   trace.Tracer
}

// NewScanner builds a Scanner. A non-positive pageSize selects paging.DefaultSize.
func NewScanner(repo Repository, pageSize int, now func() time.Time) *Scanner {
	if pageSize <= 0 {
		pageSize = paging.DefaultSize
	}
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		repo:     repo,
		pageSize: pageSize,
		now:      now,
		tracer:   otel.Tracer("libraryservice/catalog"),
	}
}

// ScanRecentlyAdded returns every book created within window of now. The
// result is fully materialized; each call rescans from the first page.
func (s *Scanner) ScanRecentlyAdded(ctx context.Context, window time.Duration) ([]Book, error) {
	cutoff := s.now().Add(-window)

	ctx, span := s.tracer.Start(ctx, "catalog.scan_recently_added",
		trace.WithAttributes(
			attribute.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
			attribute.Int("page.size", s.pageSize),
		),
	)
	defer span.End()

	books, err := paging.Collect(ctx, s.pageSize, func(ctx context.Context, page paging.Page) (paging.Slice[Book], error) {
		return s.repo.BooksAddedSince(ctx, cutoff, page)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scan recently added books: %w", err)
	}

	span.SetAttributes(attribute.Int("books.scanned", len(books)))
	return books, nil
}
