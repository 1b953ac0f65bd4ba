// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/membership"

	"github.com/google/uuid"
)

// Service defines the interface for the circulation service.
type Service interface {
	Book(ctx context.Context, req BookRequest) (*Reservation, error)
	ReturnResource(ctx context.Context, reservationID uuid.UUID, actingHolder string) error
	ListReservations(ctx context.Context, holderEmail string) ([]Reservation, error)
}

// Store opens units of work over books, holders and reservations.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	ReservationsOf(ctx context.Context, holderEmail string) ([]Reservation, error)
}

// Tx is one unit of work. Lock* methods take an exclusive row lock that is
// held until Commit or Rollback; they return ErrNotFound on a miss.
type Tx interface {
	LockBook(ctx context.Context, id uuid.UUID) (*catalog.Book, error)
	LockHolder(ctx context.Context, email string) (*membership.Holder, error)
	LockReservation(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// HasOverlap reports whether a non-returned reservation of the book shares
	// a day with [from, to].
	HasOverlap(ctx context.Context, bookID uuid.UUID, from, to time.Time) (bool, error)
	SaveReservation(ctx context.Context, r *Reservation) error
	SaveHolder(ctx context.Context, h *membership.Holder) error
	Commit() error
	Rollback() error
}
