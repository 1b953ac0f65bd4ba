// internal/membership/service.go
package membership

import (
	"context"

	"libraryservice/internal/paging"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterHolder(ctx context.Context, email string, role Role) (*Holder, error)
	GetHolder(ctx context.Context, email string) (*Holder, error)
	Subscribe(ctx context.Context, email, category string) (*Subscription, error)
	Unsubscribe(ctx context.Context, email, category string) error
	ListSubscriptions(ctx context.Context, email string) ([]Subscription, error)
}

// Repository is the persistence contract backing membership.
type Repository interface {
	InsertHolder(ctx context.Context, holder *Holder) error
	GetHolder(ctx context.Context, email string) (*Holder, error)
	InsertSubscription(ctx context.Context, sub *Subscription) error
	// DeactivateSubscription sets active=false on the holder's active
	// subscription for category and reports whether one existed.
	DeactivateSubscription(ctx context.Context, email, category string) (bool, error)
	ActiveSubscriptionsOf(ctx context.Context, email string) ([]Subscription, error)
	ActiveSubscriptions(ctx context.Context, category string, page paging.Page) (paging.Slice[Subscription], error)
}
