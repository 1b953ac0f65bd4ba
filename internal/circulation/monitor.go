// internal/circulation/monitor.go
package circulation

import (
	"context"

	"libraryservice/internal/audit"

	"github.com/google/uuid"
)

var _ Service = (*Monitor)(nil)

// Monitor decorates a Service with an audit.Recorder. Failed calls are passed
// through untouched.
type Monitor struct {
	next  Service
	audit *audit.Recorder
}

func NewMonitor(next Service, recorder *audit.Recorder) *Monitor {
	return &Monitor{next: next, audit: recorder}
}

func (m *Monitor) Book(ctx context.Context, req BookRequest) (*Reservation, error) {
	start := m.audit.Start()
	res, err := m.next.Book(ctx, req)
	if err == nil {
		m.audit.Observe(ctx, req.HolderEmail, "Book", start)
	}
	return res, err
}

func (m *Monitor) ReturnResource(ctx context.Context, reservationID uuid.UUID, actingHolder string) error {
	start := m.audit.Start()
	err := m.next.ReturnResource(ctx, reservationID, actingHolder)
	if err == nil {
		m.audit.Observe(ctx, actingHolder, "ReturnResource", start)
	}
	return err
}

func (m *Monitor) ListReservations(ctx context.Context, holderEmail string) ([]Reservation, error) {
	start := m.audit.Start()
	out, err := m.next.ListReservations(ctx, holderEmail)
	if err == nil {
		m.audit.Observe(ctx, holderEmail, "ListReservations", start)
	}
	return out, err
}
