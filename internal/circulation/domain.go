// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
)

// Reservation is a date-bounded claim on one book by one holder.
type Reservation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BookID      uuid.UUID `json:"book_id" db:"book_id"`
	HolderEmail string    `json:"holder_email" db:"holder_email"`
	FromDate    time.Time `json:"from_date" db:"from_date"`
	ToDate      time.Time `json:"to_date" db:"to_date"`
	Returned    bool      `json:"returned" db:"returned"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Status derives the lifecycle state from the persisted fields.
func (r *Reservation) Status() Status {
	switch {
	case r.Returned:
		return StatusReturned
	case r.ID == uuid.Nil:
		return StatusPending
	default:
		return StatusActive
	}
}

// Blocks reports whether the reservation excludes a new claim on [from, to].
func (r *Reservation) Blocks(from, to time.Time) bool {
	return !r.Returned && Overlaps(r.FromDate, r.ToDate, from, to)
}

// BookRequest is the input of a booking.
type BookRequest struct {
	HolderEmail string
	BookID      uuid.UUID
	FromDate    time.Time
	ToDate      time.Time
}

// Overlaps reports whether two inclusive day ranges share at least one day.
func Overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return !DateOf(aFrom).After(DateOf(bTo)) && !DateOf(bFrom).After(DateOf(aTo))
}

// DateOf truncates t to its calendar day, expressed in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
