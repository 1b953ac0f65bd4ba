package circulation_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"libraryservice/internal/audit"
	"libraryservice/internal/circulation"
	"libraryservice/internal/publish"
	"libraryservice/internal/workerpool"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	payload     any
	destination string
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, payload any, destination string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{payload: payload, destination: destination})
	return p.err
}

var _ publish.Publisher = (*recordingPublisher)(nil)

func newMonitor(next circulation.Service, pub publish.Publisher) *circulation.Monitor {
	return circulation.NewMonitor(next, audit.NewRecorder("circulation", pub, workerpool.Synchronous{}, "logging-queue", nil))
}

func TestMonitor_PublishesAfterSuccess(t *testing.T) {
	f := newFixture(t, "a@x.io")
	pub := &recordingPublisher{}
	var logs bytes.Buffer
	m := circulation.NewMonitor(f.service, audit.NewRecorder("circulation", pub, workerpool.Synchronous{}, "logging-queue",
		slog.New(slog.NewJSONHandler(&logs, nil))))

	res, err := m.Book(context.Background(), f.request("a@x.io", 1, 2))
	require.NoError(t, err)
	require.NoError(t, m.ReturnResource(context.Background(), res.ID, "a@x.io"))

	require.Len(t, pub.sent, 2)
	assert.Equal(t, "logging-queue", pub.sent[0].destination)
	msg, ok := pub.sent[0].payload.(audit.LogMessage)
	require.True(t, ok)
	assert.Equal(t, "a@x.io", msg.Holder)
	assert.Equal(t, "circulation", msg.Service)
	assert.Equal(t, "Book", msg.Method)
	assert.GreaterOrEqual(t, msg.ExecutionMS, int64(0))

	assert.Equal(t, "ReturnResource", pub.sent[1].payload.(audit.LogMessage).Method)
	assert.Contains(t, logs.String(), `"operation":"Book"`)
}

func TestMonitor_SkipsFailedCalls(t *testing.T) {
	f := newFixture(t, "a@x.io")
	pub := &recordingPublisher{}
	m := newMonitor(f.service, pub)

	err := m.ReturnResource(context.Background(), uuid.New(), "a@x.io")
	assert.ErrorIs(t, err, circulation.ErrNotFound)
	assert.Empty(t, pub.sent)
}

func TestMonitor_PublishFailureDoesNotFailCall(t *testing.T) {
	f := newFixture(t, "a@x.io")
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := newMonitor(f.service, pub)

	_, err := m.ListReservations(context.Background(), "a@x.io")
	require.NoError(t, err)
	assert.Len(t, pub.sent, 1)
}

func TestMonitor_HolderMatchesStoredKey(t *testing.T) {
	f := newFixture(t, "a@x.io")
	pub := &recordingPublisher{}
	m := newMonitor(f.service, pub)

	res, err := m.Book(context.Background(), f.request("  A@X.io ", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", res.HolderEmail)
	require.NoError(t, m.ReturnResource(context.Background(), res.ID, "A@x.IO"))
	_, err = m.ListReservations(context.Background(), " a@X.io")
	require.NoError(t, err)

	require.Len(t, pub.sent, 3)
	for _, sent := range pub.sent {
		assert.Equal(t, "a@x.io", sent.payload.(audit.LogMessage).Holder)
	}
}
