package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"libraryservice/internal/audit"
	"libraryservice/internal/catalog"
	"libraryservice/internal/paging"
	"libraryservice/internal/storage/memory"
	"libraryservice/internal/workerpool"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditSink struct {
	mu   sync.Mutex
	msgs []audit.LogMessage
}

func (s *auditSink) Publish(_ context.Context, payload any, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, payload.(audit.LogMessage))
	return nil
}

func (s *auditSink) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Method)
	}
	return out
}

func TestMonitor_AuditsSuccessfulCatalogCalls(t *testing.T) {
	sink := &auditSink{}
	svc := catalog.NewMonitor(
		catalog.NewService(memory.New(time.Second), nil, nil),
		audit.NewRecorder("catalog", sink, workerpool.Synchronous{}, "logging-queue", nil),
	)
	ctx := audit.ContextWithHolder(context.Background(), "Admin@Example.com")

	book, err := svc.AddBook(ctx, catalog.NewBook{Title: "Dune", Author: "Herbert", Category: "SciFi"})
	require.NoError(t, err)
	_, err = svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	_, err = svc.ListBooks(ctx, paging.Page{Size: 10})
	require.NoError(t, err)
	require.NoError(t, svc.BlockBook(ctx, book.ID))

	// Failures pass through unaudited.
	_, err = svc.GetBook(ctx, uuid.New())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.ErrorIs(t, svc.BlockBook(ctx, book.ID), catalog.ErrNotBlockable)

	assert.Equal(t, []string{"AddBook", "GetBook", "ListBooks", "BlockBook"}, sink.methods())
	for _, msg := range sink.msgs {
		assert.Equal(t, "catalog", msg.Service)
		assert.Equal(t, "admin@example.com", msg.Holder)
	}
}
