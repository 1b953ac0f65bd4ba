// Package memory is an in-process backend for catalog, membership and
// circulation. Row locks are held per key until the owning unit of work ends.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/membership"
	"libraryservice/internal/paging"

	"github.com/google/uuid"
)

var (
	_ catalog.Repository    = (*Store)(nil)
	_ membership.Repository = (*Store)(nil)
	_ circulation.Store     = (*Store)(nil)
)

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu            sync.Mutex
	books         map[uuid.UUID]catalog.Book
	holders       map[string]membership.Holder
	reservations  map[uuid.UUID]circulation.Reservation
	subscriptions map[uuid.UUID]membership.Subscription

	locks       map[string]*rowLock
	lockTimeout time.Duration
}

// New returns an empty Store. A positive lockTimeout bounds every row lock
// wait; zero waits until the context is done.
func New(lockTimeout time.Duration) *Store {
	return &Store{
		books:         make(map[uuid.UUID]catalog.Book),
		holders:       make(map[string]membership.Holder),
		reservations:  make(map[uuid.UUID]circulation.Reservation),
		subscriptions: make(map[uuid.UUID]membership.Subscription),
		locks:         make(map[string]*rowLock),
		lockTimeout:   lockTimeout,
	}
}

// Catalog

func (s *Store) InsertBook(ctx context.Context, book *catalog.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := *book
	b.ReservationIDs = nil
	s.books[b.ID] = b
	return nil
}

func (s *Store) GetBook(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	b.ReservationIDs = s.reservationIDsLocked(func(r circulation.Reservation) bool { return r.BookID == id })
	return &b, nil
}

func (s *Store) ListBooks(ctx context.Context, page paging.Page) (paging.Slice[catalog.Book], error) {
	return s.pageBooks(ctx, page, func(catalog.Book) bool { return true })
}

func (s *Store) BlockBook(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok || b.Blocked {
		return false, nil
	}
	b.Blocked = true
	s.books[id] = b
	return true, nil
}

func (s *Store) BooksAddedSince(ctx context.Context, cutoff time.Time, page paging.Page) (paging.Slice[catalog.Book], error) {
	return s.pageBooks(ctx, page, func(b catalog.Book) bool { return !b.CreatedAt.Before(cutoff) })
}

func (s *Store) pageBooks(ctx context.Context, page paging.Page, keep func(catalog.Book) bool) (paging.Slice[catalog.Book], error) {
	if err := ctx.Err(); err != nil {
		return paging.Slice[catalog.Book]{}, err
	}
	s.mu.Lock()
	var rows []catalog.Book
	for _, b := range s.books {
		if keep(b) {
			rows = append(rows, b)
		}
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
	return window(rows, page), nil
}

// Membership

func (s *Store) InsertHolder(ctx context.Context, holder *membership.Holder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(holder.Email)
	if _, exists := s.holders[key]; exists {
		return membership.ErrHolderExists
	}
	h := *holder
	h.Email = key
	h.ReservationIDs = nil
	s.holders[key] = h
	return nil
}

func (s *Store) GetHolder(ctx context.Context, email string) (*membership.Holder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holders[strings.ToLower(email)]
	if !ok {
		return nil, membership.ErrHolderNotFound
	}
	h.ReservationIDs = s.reservationIDsLocked(func(r circulation.Reservation) bool { return r.HolderEmail == h.Email })
	return &h, nil
}

func (s *Store) InsertSubscription(ctx context.Context, sub *membership.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.Active && existing.HolderEmail == sub.HolderEmail && existing.Category == sub.Category {
			return membership.ErrAlreadySubscribed
		}
	}
	s.subscriptions[sub.ID] = *sub
	return nil
}

func (s *Store) DeactivateSubscription(ctx context.Context, email, category string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for id, sub := range s.subscriptions {
		if sub.Active && sub.HolderEmail == email && sub.Category == category {
			sub.Active = false
			s.subscriptions[id] = sub
			found = true
		}
	}
	return found, nil
}

func (s *Store) ActiveSubscriptionsOf(ctx context.Context, email string) ([]membership.Subscription, error) {
	return s.activeSubscriptions(ctx, func(sub membership.Subscription) bool { return sub.HolderEmail == email })
}

func (s *Store) ActiveSubscriptions(ctx context.Context, category string, page paging.Page) (paging.Slice[membership.Subscription], error) {
	subs, err := s.activeSubscriptions(ctx, func(sub membership.Subscription) bool { return sub.Category == category })
	if err != nil {
		return paging.Slice[membership.Subscription]{}, err
	}
	return window(subs, page), nil
}

func (s *Store) activeSubscriptions(ctx context.Context, keep func(membership.Subscription) bool) ([]membership.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []membership.Subscription
	for _, sub := range s.subscriptions {
		if sub.Active && keep(sub) {
			out = append(out, sub)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Circulation reads

func (s *Store) ReservationsOf(ctx context.Context, holderEmail string) ([]circulation.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []circulation.Reservation
	for _, r := range s.reservations {
		if r.HolderEmail == holderEmail {
			out = append(out, r)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FromDate.Equal(out[j].FromDate) {
			return out[i].FromDate.Before(out[j].FromDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) reservationIDsLocked(keep func(circulation.Reservation) bool) []uuid.UUID {
	var ids []uuid.UUID
	for id, r := range s.reservations {
		if keep(r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func window[T any](rows []T, page paging.Page) paging.Slice[T] {
	if page.Size <= 0 {
		page.Size = paging.DefaultSize
	}
	start := page.Offset()
	if start >= len(rows) {
		return paging.Slice[T]{}
	}
	end := start + page.Size + 1
	if end > len(rows) {
		end = len(rows)
	}
	return paging.SliceOf(rows[start:end], page.Size)
}
