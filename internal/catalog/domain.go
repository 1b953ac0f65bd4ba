// internal/catalog/domain.go
package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("catalog: book not found")
	// ErrNotBlockable is returned when a book is missing or already blocked.
	ErrNotBlockable = errors.New("catalog: book not found or already blocked")
)

// Book represents a physical library item that can be rented.
// ReservationIDs is a lookup-only back-reference filled by circulation.
type Book struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	Title          string      `json:"title" db:"title"`
	Author         string      `json:"author" db:"author"`
	Category       string      `json:"category" db:"category"`
	Blocked        bool        `json:"blocked" db:"blocked"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	ReservationIDs []uuid.UUID `json:"-" db:"-"`
}

// NewBook is the input for registering a book.
type NewBook struct {
	Title    string `json:"title" validate:"required,max=255"`
	Author   string `json:"author" validate:"required,max=255"`
	Category string `json:"category" validate:"required,max=100"`
	Blocked  bool   `json:"blocked"`
}
