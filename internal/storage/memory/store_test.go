package memory

import (
	"context"
	"testing"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/membership"
	"libraryservice/internal/paging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedBooks(t *testing.T, s *Store, n int) []catalog.Book {
	t.Helper()
	books := make([]catalog.Book, 0, n)
	for i := 0; i < n; i++ {
		b := catalog.Book{
			ID:        uuid.New(),
			Title:     "Title",
			Author:    "Author",
			Category:  "Fiction",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.InsertBook(context.Background(), &b))
		books = append(books, b)
	}
	return books
}

func TestBooksAddedSince_Pages(t *testing.T) {
	s := New(0)
	books := seedBooks(t, s, 7)
	ctx := context.Background()

	cutoff := books[2].CreatedAt
	first, err := s.BooksAddedSince(ctx, cutoff, paging.Page{Number: 0, Size: 3})
	require.NoError(t, err)
	assert.True(t, first.HasNext)
	require.Len(t, first.Items, 3)
	assert.Equal(t, books[2].ID, first.Items[0].ID)

	second, err := s.BooksAddedSince(ctx, cutoff, paging.Page{Number: 1, Size: 3})
	require.NoError(t, err)
	assert.False(t, second.HasNext)
	assert.Len(t, second.Items, 2)

	beyond, err := s.BooksAddedSince(ctx, cutoff, paging.Page{Number: 5, Size: 3})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.False(t, beyond.HasNext)
}

func TestBlockBook(t *testing.T) {
	s := New(0)
	book := seedBooks(t, s, 1)[0]

	changed, err := s.BlockBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.BlockBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.BlockBook(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSubscriptions(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	require.NoError(t, s.InsertHolder(ctx, &membership.Holder{Email: "A@x.io", Role: membership.RoleUser}))
	assert.ErrorIs(t, s.InsertHolder(ctx, &membership.Holder{Email: "a@x.io"}), membership.ErrHolderExists)

	sub := membership.Subscription{ID: uuid.New(), Category: "Fiction", HolderEmail: "a@x.io", Active: true, CreatedAt: base}
	require.NoError(t, s.InsertSubscription(ctx, &sub))

	dup := sub
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.InsertSubscription(ctx, &dup), membership.ErrAlreadySubscribed)

	page, err := s.ActiveSubscriptions(ctx, "Fiction", paging.Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	found, err := s.DeactivateSubscription(ctx, "a@x.io", "Fiction")
	require.NoError(t, err)
	assert.True(t, found)

	page, err = s.ActiveSubscriptions(ctx, "Fiction", paging.Page{Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestTx_WritesInvisibleUntilCommit(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	book := seedBooks(t, s, 1)[0]
	require.NoError(t, s.InsertHolder(ctx, &membership.Holder{Email: "a@x.io"}))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	res := &circulation.Reservation{
		ID:          uuid.New(),
		BookID:      book.ID,
		HolderEmail: "a@x.io",
		FromDate:    base,
		ToDate:      base.AddDate(0, 0, 3),
	}
	require.NoError(t, tx.SaveReservation(ctx, res))

	listed, err := s.ReservationsOf(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Empty(t, listed)

	overlap, err := tx.HasOverlap(ctx, book.ID, base.AddDate(0, 0, 3), base.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.True(t, overlap)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	listed, err = s.ReservationsOf(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{res.ID}, got.ReservationIDs)
}

func TestTx_RollbackDiscards(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	book := seedBooks(t, s, 1)[0]

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveReservation(ctx, &circulation.Reservation{ID: uuid.New(), BookID: book.ID, HolderEmail: "a@x.io"}))
	require.NoError(t, tx.Rollback())

	listed, err := s.ReservationsOf(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestTx_LockTimesOut(t *testing.T) {
	s := New(20 * time.Millisecond)
	ctx := context.Background()
	book := seedBooks(t, s, 1)[0]

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = first.LockBook(ctx, book.ID)
	require.NoError(t, err)

	second, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = second.LockBook(ctx, book.ID)
	assert.ErrorIs(t, err, circulation.ErrLockTimeout)
	require.NoError(t, second.Rollback())

	require.NoError(t, first.Rollback())

	third, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = third.LockBook(ctx, book.ID)
	require.NoError(t, err)
	require.NoError(t, third.Commit())
}

func TestTx_LockMissingRow(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.LockBook(ctx, uuid.New())
	assert.ErrorIs(t, err, circulation.ErrNotFound)
	_, err = tx.LockHolder(ctx, "nobody@x.io")
	assert.ErrorIs(t, err, circulation.ErrNotFound)
	_, err = tx.LockReservation(ctx, uuid.New())
	assert.ErrorIs(t, err, circulation.ErrNotFound)
}

func TestTx_LockHonorsContext(t *testing.T) {
	s := New(0)
	book := seedBooks(t, s, 1)[0]

	holder, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = holder.LockBook(context.Background(), book.ID)
	require.NoError(t, err)
	defer holder.Rollback()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = waiter.LockBook(ctx, book.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func lockEntries(s *Store) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func TestTx_LockTableDrains(t *testing.T) {
	s := New(20 * time.Millisecond)
	ctx := context.Background()
	book := seedBooks(t, s, 1)[0]

	for i := 0; i < 50; i++ {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		_, err = tx.LockReservation(ctx, uuid.New())
		require.ErrorIs(t, err, circulation.ErrNotFound)
		_, err = tx.LockBook(ctx, book.ID)
		require.NoError(t, err)
		if i%2 == 0 {
			require.NoError(t, tx.Commit())
		} else {
			require.NoError(t, tx.Rollback())
		}
	}
	assert.Zero(t, lockEntries(s), "after commit and rollback")

	owner, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = owner.LockBook(ctx, book.ID)
	require.NoError(t, err)

	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = waiter.LockBook(ctx, book.ID)
	require.ErrorIs(t, err, circulation.ErrLockTimeout)
	require.NoError(t, waiter.Rollback())
	assert.Equal(t, 1, lockEntries(s), "owner still holds the book")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	other, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = other.LockBook(canceled, book.ID)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, other.Rollback())
	assert.Equal(t, 1, lockEntries(s), "canceled waiter leaves no reference")

	require.NoError(t, owner.Commit())
	assert.Zero(t, lockEntries(s), "after the last holder leaves")
}

func TestTx_WaiterAcquiresAfterRelease(t *testing.T) {
	s := New(time.Second)
	ctx := context.Background()
	book := seedBooks(t, s, 1)[0]

	owner, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = owner.LockBook(ctx, book.ID)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		waiter, err := s.Begin(ctx)
		if err != nil {
			acquired <- err
			return
		}
		_, err = waiter.LockBook(ctx, book.ID)
		if err == nil {
			err = waiter.Commit()
		}
		acquired <- err
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		rl := s.locks["book:"+book.ID.String()]
		return rl != nil && rl.refs == 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, owner.Rollback())

	require.NoError(t, <-acquired)
	assert.Zero(t, lockEntries(s))
}
