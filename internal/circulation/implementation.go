// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"libraryservice/internal/logging"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer

	bookings metric.Int64Counter
	returns  metric.Int64Counter
}

// NewService creates a new circulation service instance.
func NewService(store Store, logger *slog.Logger, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}

	meter := otel.Meter("libraryservice/circulation")
	bookings, _ := meter.Int64Counter("circulation.bookings",
		metric.WithDescription("Booking attempts by outcome"))
	returns, _ := meter.Int64Counter("circulation.returns",
		metric.WithDescription("Return attempts by outcome"))

	return &service{
		store:    store,
		now:      now,
		logger:   logging.Default(logger),
		tracer:   otel.Tracer("libraryservice/circulation"),
		bookings: bookings,
		returns:  returns,
	}
}

// Book reserves a book for a holder over an inclusive date range.
func (s *service) Book(ctx context.Context, req BookRequest) (res *Reservation, err error) {
	req.HolderEmail = strings.ToLower(strings.TrimSpace(req.HolderEmail))
	req.FromDate = DateOf(req.FromDate)
	req.ToDate = DateOf(req.ToDate)

	ctx, span := s.tracer.Start(ctx, "circulation.book",
		trace.WithAttributes(
			attribute.String("book.id", req.BookID.String()),
			attribute.String("from_date", req.FromDate.Format(time.DateOnly)),
			attribute.String("to_date", req.ToDate.Format(time.DateOnly)),
		),
	)
	defer func() {
		s.record(ctx, s.bookings, err)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	// Step 1: Validate the request without touching the store
	if vErr := s.validateBooking(req); vErr.HasErrors() {
		return nil, vErr
	}

	err = s.inTx(ctx, func(tx Tx) error {
		// Step 2: Lock holder, then book, before any write
		holder, err := tx.LockHolder(ctx, req.HolderEmail)
		if err != nil {
			return fmt.Errorf("failed to lock holder: %w", err)
		}
		book, err := tx.LockBook(ctx, req.BookID)
		if err != nil {
			return fmt.Errorf("failed to lock book: %w", err)
		}
		if book.Blocked {
			return fmt.Errorf("book %s is blocked: %w", book.ID, ErrResourceUnavailable)
		}

		// Step 3: Reject overlapping active reservations
		overlap, err := tx.HasOverlap(ctx, book.ID, req.FromDate, req.ToDate)
		if err != nil {
			return fmt.Errorf("failed to check overlap: %w", err)
		}
		if overlap {
			return ErrResourceUnavailable
		}

		// Step 4: Create the reservation and link it
		res = &Reservation{
			ID:          uuid.New(),
			BookID:      book.ID,
			HolderEmail: holder.Email,
			FromDate:    req.FromDate,
			ToDate:      req.ToDate,
			Returned:    false,
			CreatedAt:   s.now().UTC(),
		}
		holder.ReservationIDs = append(holder.ReservationIDs, res.ID)
		book.ReservationIDs = append(book.ReservationIDs, res.ID)

		if err := tx.SaveReservation(ctx, res); err != nil {
			return fmt.Errorf("failed to save reservation: %w", err)
		}
		if err := tx.SaveHolder(ctx, holder); err != nil {
			return fmt.Errorf("failed to save holder: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("reservation.id", res.ID.String()))
	return res, nil
}

// ReturnResource transitions an active reservation to returned.
func (s *service) ReturnResource(ctx context.Context, reservationID uuid.UUID, actingHolder string) (err error) {
	actingHolder = strings.ToLower(strings.TrimSpace(actingHolder))

	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("reservation.id", reservationID.String())),
	)
	defer func() {
		s.record(ctx, s.returns, err)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	return s.inTx(ctx, func(tx Tx) error {
		res, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return fmt.Errorf("failed to lock reservation: %w", err)
		}

		if res.HolderEmail != actingHolder {
			return ErrNotOwner
		}
		// Late returns are rejected, not accepted.
		if DateOf(res.ToDate).Before(s.today()) {
			return ErrAlreadyPastDue
		}
		if res.Status() == StatusReturned {
			return ErrAlreadyReturned
		}

		res.Returned = true
		if err := tx.SaveReservation(ctx, res); err != nil {
			return fmt.Errorf("failed to save reservation: %w", err)
		}
		return nil
	})
}

// ListReservations returns every reservation held by the holder.
func (s *service) ListReservations(ctx context.Context, holderEmail string) ([]Reservation, error) {
	return s.store.ReservationsOf(ctx, strings.ToLower(strings.TrimSpace(holderEmail)))
}

func (s *service) validateBooking(req BookRequest) *ValidationError {
	vErr := &ValidationError{}
	today := s.today()

	if req.HolderEmail == "" {
		vErr.add("holder_email", "must not be empty")
	}
	if req.BookID == uuid.Nil {
		vErr.add("book_id", "must not be empty")
	}
	if !req.FromDate.After(today) {
		vErr.add("from_date", "must be in the future")
	}
	if !req.ToDate.After(today) {
		vErr.add("to_date", "must be in the future")
	}
	if !req.FromDate.Before(req.ToDate) {
		vErr.add("from_date", "must be before to_date")
	}
	return vErr
}

// inTx runs fn inside one unit of work. Any error rolls the whole unit back.
func (s *service) inTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *service) today() time.Time {
	return DateOf(s.now())
}

func (s *service) record(ctx context.Context, counter metric.Int64Counter, err error) {
	outcome := "ok"
	if err != nil {
		outcome = ErrorKind(err)
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
