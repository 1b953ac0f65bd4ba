// internal/membership/monitor.go
package membership

import (
	"context"

	"libraryservice/internal/audit"
)

var _ Service = (*Monitor)(nil)

// Monitor audits successful membership calls against the holder they name.
type Monitor struct {
	next  Service
	audit *audit.Recorder
}

func NewMonitor(next Service, recorder *audit.Recorder) *Monitor {
	return &Monitor{next: next, audit: recorder}
}

func (m *Monitor) RegisterHolder(ctx context.Context, email string, role Role) (*Holder, error) {
	start := m.audit.Start()
	holder, err := m.next.RegisterHolder(ctx, email, role)
	if err == nil {
		m.audit.Observe(ctx, email, "RegisterHolder", start)
	}
	return holder, err
}

func (m *Monitor) GetHolder(ctx context.Context, email string) (*Holder, error) {
	start := m.audit.Start()
	holder, err := m.next.GetHolder(ctx, email)
	if err == nil {
		m.audit.Observe(ctx, email, "GetHolder", start)
	}
	return holder, err
}

func (m *Monitor) Subscribe(ctx context.Context, email, category string) (*Subscription, error) {
	start := m.audit.Start()
	sub, err := m.next.Subscribe(ctx, email, category)
	if err == nil {
		m.audit.Observe(ctx, email, "Subscribe", start)
	}
	return sub, err
}

func (m *Monitor) Unsubscribe(ctx context.Context, email, category string) error {
	start := m.audit.Start()
	err := m.next.Unsubscribe(ctx, email, category)
	if err == nil {
		m.audit.Observe(ctx, email, "Unsubscribe", start)
	}
	return err
}

func (m *Monitor) ListSubscriptions(ctx context.Context, email string) ([]Subscription, error) {
	start := m.audit.Start()
	out, err := m.next.ListSubscriptions(ctx, email)
	if err == nil {
		m.audit.Observe(ctx, email, "ListSubscriptions", start)
	}
	return out, err
}
