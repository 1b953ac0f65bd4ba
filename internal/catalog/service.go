// internal/catalog/service.go
package catalog

import (
	"context"
	"time"

	"libraryservice/internal/paging"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, in NewBook) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context, page paging.Page) (paging.Slice[Book], error)
	BlockBook(ctx context.Context, id uuid.UUID) error
}

// Repository is the persistence contract backing the catalog.
type Repository interface {
	InsertBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context, page paging.Page) (paging.Slice[Book], error)
	// BlockBook flips blocked to true and reports whether a row changed.
	BlockBook(ctx context.Context, id uuid.UUID) (bool, error)
	BooksAddedSince(ctx context.Context, cutoff time.Time, page paging.Page) (paging.Slice[Book], error)
}
