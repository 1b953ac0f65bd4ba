// internal/membership/domain.go
package membership

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrHolderNotFound    = errors.New("membership: holder not found")
	ErrHolderExists      = errors.New("membership: holder already registered")
	ErrAlreadySubscribed = errors.New("membership: category is already subscribed")
	ErrNotSubscribed     = errors.New("membership: category is not subscribed")
)

// Role is the access level of a holder.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Holder is an account that can own reservations and subscriptions.
// ReservationIDs is a lookup-only back-reference.
type Holder struct {
	Email          string      `json:"email" db:"email"`
	Role           Role        `json:"role" db:"role"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	ReservationIDs []uuid.UUID `json:"-" db:"-"`
}

// Subscription routes new-book notifications for one category to a holder.
type Subscription struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Category    string    `json:"category" db:"category_name"`
	HolderEmail string    `json:"holder_email" db:"holder_email"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
