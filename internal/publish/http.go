// internal/publish/http.go
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"libraryservice/internal/httpx"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HTTPPublisher posts JSON messages to a broker's HTTP ingress at
// <baseURL>/queues/<destination>/messages.
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
}

// Option customizes an HTTPPublisher.
type Option func(*HTTPPublisher)

// WithClient replaces the shared outbound client.
func WithClient(c *http.Client) Option {
	return func(p *HTTPPublisher) { p.client = c }
}

// WithTimeout bounds each publish attempt.
func WithTimeout(d time.Duration) Option {
	return func(p *HTTPPublisher) { p.timeout = d }
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(p *HTTPPublisher) { p.breaker = gobreaker.NewCircuitBreaker(st) }
}

func NewHTTPPublisher(baseURL string, opts ...Option) *HTTPPublisher {
	p := &HTTPPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpx.Client(),
		timeout: 5 * time.Second,
		tracer:  otel.Tracer("libraryservice/publish"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "publish",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return p
}

// Publish encodes payload and posts it to destination. Non-2xx responses and
// an open breaker are reported as errors.
func (p *HTTPPublisher) Publish(ctx context.Context, payload any, destination string) error {
	if destination == "" {
		return ErrNoDestination
	}

	ctx, span := p.tracer.Start(ctx, "publish.http",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("messaging.destination", destination)),
	)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.post(ctx, destination, body)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish to %s: %w", destination, err)
	}
	return nil
}

func (p *HTTPPublisher) post(ctx context.Context, destination string, body []byte) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	endpoint := fmt.Sprintf("%s/queues/%s/messages", p.baseURL, url.PathEscape(destination))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status code %d", ErrRejected, resp.StatusCode)
	}
	return nil
}
