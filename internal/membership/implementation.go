// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"libraryservice/internal/logging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("membership: rate limit exceeded")

// service implements the Service interface.
type service struct {
	repo        Repository
	now         func() time.Time
	logger      *slog.Logger
	tracer      trace.Tracer
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(repo Repository, logger *slog.Logger, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        repo,
		now:         now,
		logger:      logging.Default(logger),
		tracer:      otel.Tracer("libraryservice/membership"),
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 registrations per minute
	}
}

// RegisterHolder creates a new holder account.
func (s *service) RegisterHolder(ctx context.Context, email string, role Role) (*Holder, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}
	if role == "" {
		role = RoleUser
	}

	holder := &Holder{
		Email:     normalizeEmail(email),
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertHolder(ctx, holder); err != nil {
		return nil, fmt.Errorf("failed to register holder: %w", err)
	}
	return holder, nil
}

// GetHolder retrieves a holder by email.
func (s *service) GetHolder(ctx context.Context, email string) (*Holder, error) {
	return s.repo.GetHolder(ctx, normalizeEmail(email))
}

// Subscribe starts routing new-book notifications for category to the holder.
func (s *service) Subscribe(ctx context.Context, email, category string) (*Subscription, error) {
	email = normalizeEmail(email)
	ctx, span := s.tracer.Start(ctx, "membership.subscribe",
		trace.WithAttributes(attribute.String("category", category)),
	)
	defer span.End()

	if _, err := s.repo.GetHolder(ctx, email); err != nil {
		return nil, err
	}

	active, err := s.repo.ActiveSubscriptionsOf(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	for _, sub := range active {
		if sub.Category == category {
			return nil, ErrAlreadySubscribed
		}
	}

	sub := &Subscription{
		ID:          uuid.New(),
		Category:    category,
		HolderEmail: email,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}
	// A concurrent subscribe for the same category surfaces as ErrAlreadySubscribed
	// from the repository.
	if err := s.repo.InsertSubscription(ctx, sub); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}

	logging.For(ctx, s.logger, "membership", "subscribe").
		InfoContext(ctx, "subscribed", "holder", email, "category", category)
	return sub, nil
}

// Unsubscribe deactivates the holder's subscription for category.
func (s *service) Unsubscribe(ctx context.Context, email, category string) error {
	email = normalizeEmail(email)
	ctx, span := s.tracer.Start(ctx, "membership.unsubscribe",
		trace.WithAttributes(attribute.String("category", category)),
	)
	defer span.End()

	if _, err := s.repo.GetHolder(ctx, email); err != nil {
		return err
	}

	found, err := s.repo.DeactivateSubscription(ctx, email, category)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	if !found {
		return ErrNotSubscribed
	}
	return nil
}

// ListSubscriptions returns the holder's active subscriptions.
func (s *service) ListSubscriptions(ctx context.Context, email string) ([]Subscription, error) {
	email = normalizeEmail(email)
	if _, err := s.repo.GetHolder(ctx, email); err != nil {
		return nil, err
	}
	return s.repo.ActiveSubscriptionsOf(ctx, email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
