package postgres

import (
	"context"
	"fmt"
	"strings"

	"libraryservice/internal/membership"
	"libraryservice/internal/paging"

	"github.com/doug-martin/goqu/v9"
	"go.opentelemetry.io/otel/attribute"
)

var (
	holderColumns       = []interface{}{"email", "role", "created_at"}
	subscriptionColumns = []interface{}{"id", "category_name", "holder_email", "active", "created_at"}
)

func (s *Store) InsertHolder(ctx context.Context, holder *membership.Holder) (err error) {
	ctx, span := s.start(ctx, "insert_holder")
	defer func() { record(span, err); span.End() }()

	_, err = exec(ctx, s.db, dialect.Insert(tableHolders).Prepared(true).Rows(goqu.Record{
		"email":      strings.ToLower(holder.Email),
		"role":       string(holder.Role),
		"created_at": holder.CreatedAt,
	}))
	if isUniqueViolation(err) {
		return membership.ErrHolderExists
	}
	if err != nil {
		return fmt.Errorf("insert holder: %w", err)
	}
	return nil
}

func (s *Store) GetHolder(ctx context.Context, email string) (_ *membership.Holder, err error) {
	ctx, span := s.start(ctx, "get_holder")
	defer func() { record(span, err); span.End() }()

	var holder membership.Holder
	err = get(ctx, s.db, &holder, dialect.From(tableHolders).Prepared(true).
		Select(holderColumns...).
		Where(goqu.C("email").Eq(strings.ToLower(email))))
	if isNoRows(err) {
		return nil, membership.ErrHolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holder: %w", err)
	}

	if holder.ReservationIDs, err = reservationIDs(ctx, s.db, goqu.C("holder_email").Eq(holder.Email)); err != nil {
		return nil, err
	}
	return &holder, nil
}

func (s *Store) InsertSubscription(ctx context.Context, sub *membership.Subscription) (err error) {
	ctx, span := s.start(ctx, "insert_subscription", attribute.String("category", sub.Category))
	defer func() { record(span, err); span.End() }()

	_, err = exec(ctx, s.db, dialect.Insert(tableSubscriptions).Prepared(true).Rows(goqu.Record{
		"id":            sub.ID,
		"category_name": sub.Category,
		"holder_email":  sub.HolderEmail,
		"active":        sub.Active,
		"created_at":    sub.CreatedAt,
	}))
	if isUniqueViolation(err) {
		return membership.ErrAlreadySubscribed
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *Store) DeactivateSubscription(ctx context.Context, email, category string) (_ bool, err error) {
	ctx, span := s.start(ctx, "deactivate_subscription", attribute.String("category", category))
	defer func() { record(span, err); span.End() }()

	n, err := exec(ctx, s.db, dialect.Update(tableSubscriptions).Prepared(true).
		Set(goqu.Record{"active": false}).
		Where(goqu.Ex{"holder_email": email, "category_name": category, "active": true}))
	if err != nil {
		return false, fmt.Errorf("deactivate subscription: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ActiveSubscriptionsOf(ctx context.Context, email string) (_ []membership.Subscription, err error) {
	ctx, span := s.start(ctx, "active_subscriptions_of")
	defer func() { record(span, err); span.End() }()

	var subs []membership.Subscription
	err = selectAll(ctx, s.db, &subs, dialect.From(tableSubscriptions).Prepared(true).
		Select(subscriptionColumns...).
		Where(goqu.Ex{"holder_email": email, "active": true}).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *Store) ActiveSubscriptions(ctx context.Context, category string, page paging.Page) (_ paging.Slice[membership.Subscription], err error) {
	ctx, span := s.start(ctx, "active_subscriptions",
		attribute.String("category", category),
		attribute.Int("page.number", page.Number),
	)
	defer func() { record(span, err); span.End() }()

	var subs []membership.Subscription
	err = selectAll(ctx, s.db, &subs, dialect.From(tableSubscriptions).Prepared(true).
		Select(subscriptionColumns...).
		Where(goqu.Ex{"category_name": category, "active": true}).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Limit(uint(page.Size+1)).
		Offset(uint(page.Offset())))
	if err != nil {
		return paging.Slice[membership.Subscription]{}, fmt.Errorf("page subscriptions: %w", err)
	}
	return paging.SliceOf(subs, page.Size), nil
}
