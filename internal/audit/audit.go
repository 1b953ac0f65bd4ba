// Package audit times service calls and publishes one LogMessage for every
// call that succeeds.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"libraryservice/internal/logging"
	"libraryservice/internal/publish"
	"libraryservice/internal/workerpool"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LogMessage is the audit record emitted after each successful operation.
type LogMessage struct {
	Holder      string    `json:"holder"`
	Service     string    `json:"service"`
	Method      string    `json:"method"`
	ExecutionMS int64     `json:"execution_ms"`
	At          time.Time `json:"at"`
}

type holderKey struct{}

// ContextWithHolder records the acting holder for calls whose arguments do
// not name one.
func ContextWithHolder(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, holderKey{}, email)
}

// HolderFromContext returns the holder stored by ContextWithHolder, or "".
func HolderFromContext(ctx context.Context) string {
	email, _ := ctx.Value(holderKey{}).(string)
	return email
}

// Recorder logs, measures and publishes successful calls of one service.
// Messages are handed to an executor so the caller never waits on the broker.
type Recorder struct {
	service   string
	publisher publish.Publisher
	executor  workerpool.Executor
	queue     string
	logger    *slog.Logger
	now       func() time.Time
	duration  metric.Float64Histogram
}

func NewRecorder(service string, publisher publish.Publisher, executor workerpool.Executor, queue string, logger *slog.Logger) *Recorder {
	if executor == nil {
		executor = workerpool.Synchronous{}
	}
	duration, _ := otel.Meter("libraryservice/"+service).Float64Histogram(service+".duration",
		metric.WithDescription("Duration of successful "+service+" operations"),
		metric.WithUnit("ms"),
	)
	return &Recorder{
		service:   service,
		publisher: publisher,
		executor:  executor,
		queue:     queue,
		logger:    logging.Default(logger),
		now:       time.Now,
		duration:  duration,
	}
}

// Start marks the beginning of a call.
func (r *Recorder) Start() time.Time {
	return r.now()
}

// Observe records a call that began at start and returned without error.
func (r *Recorder) Observe(ctx context.Context, holder, method string, start time.Time) {
	elapsed := r.now().Sub(start)
	msg := LogMessage{
		Holder:      strings.ToLower(strings.TrimSpace(holder)),
		Service:     r.service,
		Method:      method,
		ExecutionMS: elapsed.Milliseconds(),
		At:          r.now().UTC(),
	}

	logger := logging.For(ctx, r.logger, r.service, method)
	logger.InfoContext(ctx, "operation completed",
		"holder", msg.Holder,
		"execution_ms", msg.ExecutionMS,
	)
	if r.duration != nil {
		r.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond),
			metric.WithAttributes(attribute.String("method", method)))
	}

	if r.publisher == nil || r.queue == "" {
		return
	}
	pubCtx := context.WithoutCancel(ctx)
	err := r.executor.Submit(func() {
		if err := r.publisher.Publish(pubCtx, msg, r.queue); err != nil {
			logger.Warn("failed to publish audit message", "queue", r.queue, "error", err)
		}
	})
	if err != nil {
		logger.Warn("failed to schedule audit message", "error", err)
	}
}
