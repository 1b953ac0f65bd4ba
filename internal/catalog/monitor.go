// internal/catalog/monitor.go
package catalog

import (
	"context"

	"libraryservice/internal/audit"
	"libraryservice/internal/paging"

	"github.com/google/uuid"
)

var _ Service = (*Monitor)(nil)

// Monitor audits successful catalog calls. The holder is taken from the
// request context since no catalog operation carries one.
type Monitor struct {
	next  Service
	audit *audit.Recorder
}

func NewMonitor(next Service, recorder *audit.Recorder) *Monitor {
	return &Monitor{next: next, audit: recorder}
}

func (m *Monitor) AddBook(ctx context.Context, in NewBook) (*Book, error) {
	start := m.audit.Start()
	book, err := m.next.AddBook(ctx, in)
	if err == nil {
		m.audit.Observe(ctx, audit.HolderFromContext(ctx), "AddBook", start)
	}
	return book, err
}

func (m *Monitor) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	start := m.audit.Start()
	book, err := m.next.GetBook(ctx, id)
	if err == nil {
		m.audit.Observe(ctx, audit.HolderFromContext(ctx), "GetBook", start)
	}
	return book, err
}

func (m *Monitor) ListBooks(ctx context.Context, page paging.Page) (paging.Slice[Book], error) {
	start := m.audit.Start()
	out, err := m.next.ListBooks(ctx, page)
	if err == nil {
		m.audit.Observe(ctx, audit.HolderFromContext(ctx), "ListBooks", start)
	}
	return out, err
}

func (m *Monitor) BlockBook(ctx context.Context, id uuid.UUID) error {
	start := m.audit.Start()
	err := m.next.BlockBook(ctx, id)
	if err == nil {
		m.audit.Observe(ctx, audit.HolderFromContext(ctx), "BlockBook", start)
	}
	return err
}
