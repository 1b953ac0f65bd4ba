// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"libraryservice/internal/logging"
	"libraryservice/internal/paging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(repo Repository, logger *slog.Logger, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   repo,
		now:    now,
		logger: logging.Default(logger),
		tracer: otel.Tracer("libraryservice/catalog"),
	}
}

// AddBook registers a new book in the catalog.
func (s *service) AddBook(ctx context.Context, in NewBook) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book",
		trace.WithAttributes(attribute.String("book.category", in.Category)),
	)
	defer span.End()

	book := &Book{
		ID:        uuid.New(),
		Title:     in.Title,
		Author:    in.Author,
		Category:  in.Category,
		Blocked:   in.Blocked,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.InsertBook(ctx, book); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}

	logging.For(ctx, s.logger, "catalog", "add_book").
		InfoContext(ctx, "book added", "book_id", book.ID, "category", book.Category)
	return book, nil
}

// GetBook retrieves a book from the catalog by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.repo.GetBook(ctx, id)
}

// ListBooks returns one page of the catalog.
func (s *service) ListBooks(ctx context.Context, page paging.Page) (paging.Slice[Book], error) {
	if page.Size <= 0 {
		page.Size = 20
	}
	return s.repo.ListBooks(ctx, page)
}

// BlockBook marks a book as unavailable for new rentals.
func (s *service) BlockBook(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "catalog.block_book",
		trace.WithAttributes(attribute.String("book.id", id.String())),
	)
	defer span.End()

	changed, err := s.repo.BlockBook(ctx, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to block book: %w", err)
	}
	if !changed {
		return ErrNotBlockable
	}
	return nil
}
