package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/membership"

	"github.com/google/uuid"
)

var errTxDone = errors.New("memory: transaction already finished")

// Begin opens a unit of work. Writes stay private to the Tx until Commit.
func (s *Store) Begin(ctx context.Context) (circulation.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{
		store:        s,
		held:         make(map[string]*rowLock),
		reservations: make(map[uuid.UUID]circulation.Reservation),
		holders:      make(map[string]membership.Holder),
	}, nil
}

type tx struct {
	store *Store
	held  map[string]*rowLock
	done  bool

	reservations map[uuid.UUID]circulation.Reservation
	holders      map[string]membership.Holder
}

func (t *tx) LockBook(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	if err := t.lock(ctx, "book:"+id.String()); err != nil {
		return nil, err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	b, ok := t.store.books[id]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", id, circulation.ErrNotFound)
	}
	b.ReservationIDs = t.store.reservationIDsLocked(func(r circulation.Reservation) bool { return r.BookID == id })
	return &b, nil
}

func (t *tx) LockHolder(ctx context.Context, email string) (*membership.Holder, error) {
	if err := t.lock(ctx, "holder:"+email); err != nil {
		return nil, err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	h, ok := t.store.holders[email]
	if !ok {
		return nil, fmt.Errorf("holder %s: %w", email, circulation.ErrNotFound)
	}
	h.ReservationIDs = t.store.reservationIDsLocked(func(r circulation.Reservation) bool { return r.HolderEmail == email })
	return &h, nil
}

func (t *tx) LockReservation(ctx context.Context, id uuid.UUID) (*circulation.Reservation, error) {
	if err := t.lock(ctx, "reservation:"+id.String()); err != nil {
		return nil, err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	r, ok := t.store.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", id, circulation.ErrNotFound)
	}
	return &r, nil
}

func (t *tx) HasOverlap(ctx context.Context, bookID uuid.UUID, from, to time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, r := range t.reservations {
		if r.BookID == bookID && r.Blocks(from, to) {
			return true, nil
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, r := range t.store.reservations {
		if _, shadowed := t.reservations[id]; shadowed {
			continue
		}
		if r.BookID == bookID && r.Blocks(from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) SaveReservation(ctx context.Context, r *circulation.Reservation) error {
	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.reservations[r.ID] = *r
	return nil
}

func (t *tx) SaveHolder(ctx context.Context, h *membership.Holder) error {
	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	saved := *h
	saved.ReservationIDs = nil
	t.holders[h.Email] = saved
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.store.mu.Lock()
	for id, r := range t.reservations {
		t.store.reservations[id] = r
	}
	for email, h := range t.holders {
		t.store.holders[email] = h
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards pending writes. It is a no-op once the Tx has finished.
func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	for key, rl := range t.held {
		<-rl.token
		t.store.unref(key, rl)
		delete(t.held, key)
	}
	t.reservations = nil
	t.holders = nil
}

// lock acquires the row token for key. Re-locking a key already held by the
// same Tx succeeds immediately.
func (t *tx) lock(ctx context.Context, key string) error {
	if t.done {
		return errTxDone
	}
	if _, ok := t.held[key]; ok {
		return nil
	}

	t.store.mu.Lock()
	rl, ok := t.store.locks[key]
	if !ok {
		rl = &rowLock{token: make(chan struct{}, 1)}
		t.store.locks[key] = rl
	}
	rl.refs++
	timeout := t.store.lockTimeout
	t.store.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case rl.token <- struct{}{}:
		t.held[key] = rl
		return nil
	case <-expired:
		t.store.unref(key, rl)
		return fmt.Errorf("%s: %w", key, circulation.ErrLockTimeout)
	case <-ctx.Done():
		t.store.unref(key, rl)
		return ctx.Err()
	}
}

// rowLock is a single-slot token shared by every Tx holding or waiting on
// one key. refs counts both, and the entry leaves Store.locks at zero.
type rowLock struct {
	token chan struct{}
	refs  int
}

func (s *Store) unref(key string, rl *rowLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl.refs--
	if rl.refs == 0 && s.locks[key] == rl {
		delete(s.locks, key)
	}
}
