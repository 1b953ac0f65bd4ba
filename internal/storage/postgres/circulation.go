package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/membership"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var rentalColumns = []interface{}{"id", "book_id", "holder_email", "from_date", "to_date", "returned", "created_at"}

func (s *Store) ReservationsOf(ctx context.Context, holderEmail string) (_ []circulation.Reservation, err error) {
	ctx, span := s.start(ctx, "reservations_of")
	defer func() { record(span, err); span.End() }()

	var out []circulation.Reservation
	err = selectAll(ctx, s.db, &out, dialect.From(tableRentals).Prepared(true).
		Select(rentalColumns...).
		Where(goqu.C("holder_email").Eq(holderEmail)).
		Order(goqu.C("from_date").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for i := range out {
		out[i].FromDate = circulation.DateOf(out[i].FromDate)
		out[i].ToDate = circulation.DateOf(out[i].ToDate)
	}
	return out, nil
}

// Begin opens a read-committed transaction. Row locks taken through the Tx
// are released on Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (circulation.Tx, error) {
	ctx, span := s.start(ctx, "begin")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			span.RecordError(err)
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}
	return &pgTx{tx: tx, tracer: s.tracer}, nil
}

type pgTx struct {
	tx     *sqlx.Tx
	tracer trace.Tracer
	done   bool
}

func (t *pgTx) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "postgres.tx."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (t *pgTx) LockBook(ctx context.Context, id uuid.UUID) (_ *catalog.Book, err error) {
	ctx, span := t.start(ctx, "lock_book", attribute.String("book.id", id.String()))
	defer func() { record(span, err); span.End() }()

	var book catalog.Book
	err = get(ctx, t.tx, &book, dialect.From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait))
	if err != nil {
		return nil, lockError("book", id.String(), err)
	}

	if book.ReservationIDs, err = reservationIDs(ctx, t.tx, goqu.C("book_id").Eq(id)); err != nil {
		return nil, err
	}
	return &book, nil
}

func (t *pgTx) LockHolder(ctx context.Context, email string) (_ *membership.Holder, err error) {
	ctx, span := t.start(ctx, "lock_holder")
	defer func() { record(span, err); span.End() }()

	var holder membership.Holder
	err = get(ctx, t.tx, &holder, dialect.From(tableHolders).Prepared(true).
		Select(holderColumns...).
		Where(goqu.C("email").Eq(email)).
		ForUpdate(exp.Wait))
	if err != nil {
		return nil, lockError("holder", email, err)
	}

	if holder.ReservationIDs, err = reservationIDs(ctx, t.tx, goqu.C("holder_email").Eq(email)); err != nil {
		return nil, err
	}
	return &holder, nil
}

func (t *pgTx) LockReservation(ctx context.Context, id uuid.UUID) (_ *circulation.Reservation, err error) {
	ctx, span := t.start(ctx, "lock_reservation", attribute.String("reservation.id", id.String()))
	defer func() { record(span, err); span.End() }()

	var res circulation.Reservation
	err = get(ctx, t.tx, &res, dialect.From(tableRentals).Prepared(true).
		Select(rentalColumns...).
		Where(goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait))
	if err != nil {
		return nil, lockError("reservation", id.String(), err)
	}
	res.FromDate = circulation.DateOf(res.FromDate)
	res.ToDate = circulation.DateOf(res.ToDate)
	return &res, nil
}

// HasOverlap runs under the book row lock, so the answer holds until commit.
func (t *pgTx) HasOverlap(ctx context.Context, bookID uuid.UUID, from, to time.Time) (_ bool, err error) {
	ctx, span := t.start(ctx, "has_overlap", attribute.String("book.id", bookID.String()))
	defer func() { record(span, err); span.End() }()

	var one int
	err = get(ctx, t.tx, &one, dialect.From(tableRentals).Prepared(true).
		Select(goqu.L("1")).
		Where(
			goqu.Ex{"book_id": bookID, "returned": false},
			goqu.C("from_date").Lte(dateParam(to)),
			goqu.C("to_date").Gte(dateParam(from)),
		).
		Limit(1))
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return true, nil
}

func (t *pgTx) SaveReservation(ctx context.Context, r *circulation.Reservation) (err error) {
	ctx, span := t.start(ctx, "save_reservation", attribute.String("reservation.id", r.ID.String()))
	defer func() { record(span, err); span.End() }()

	_, err = exec(ctx, t.tx, dialect.Insert(tableRentals).Prepared(true).
		Rows(goqu.Record{
			"id":           r.ID,
			"book_id":      r.BookID,
			"holder_email": r.HolderEmail,
			"from_date":    dateParam(r.FromDate),
			"to_date":      dateParam(r.ToDate),
			"returned":     r.Returned,
			"created_at":   r.CreatedAt,
		}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{"returned": goqu.L("EXCLUDED.returned")})))
	if err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}

func (t *pgTx) SaveHolder(ctx context.Context, h *membership.Holder) (err error) {
	ctx, span := t.start(ctx, "save_holder")
	defer func() { record(span, err); span.End() }()

	n, err := exec(ctx, t.tx, dialect.Update(tableHolders).Prepared(true).
		Set(goqu.Record{"role": string(h.Role)}).
		Where(goqu.C("email").Eq(h.Email)))
	if err != nil {
		return fmt.Errorf("save holder: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("holder %s: %w", h.Email, circulation.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return lockError("commit", "", err)
	}
	return nil
}

// Rollback is a no-op once the Tx has finished.
func (t *pgTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// dateParam binds t as a calendar day so the comparison does not depend on
// the session time zone.
func dateParam(t time.Time) exp.LiteralExpression {
	return goqu.L("?::date", circulation.DateOf(t).Format(time.DateOnly))
}

func lockError(kind, key string, err error) error {
	switch {
	case isNoRows(err):
		return fmt.Errorf("%s %s: %w", kind, key, circulation.ErrNotFound)
	case isLockNotAvailable(err):
		return fmt.Errorf("%s %s: %w", kind, key, circulation.ErrLockTimeout)
	default:
		return fmt.Errorf("lock %s: %w", kind, err)
	}
}
