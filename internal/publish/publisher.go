// internal/publish/publisher.go
package publish

import (
	"context"
	"errors"
	"log/slog"

	"libraryservice/internal/logging"

	jsoniter "github.com/json-iterator/go"
)

var (
	ErrNoDestination = errors.New("publish: destination must not be empty")
	ErrRejected      = errors.New("publish: broker rejected message")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher delivers a payload to a named broker destination.
type Publisher interface {
	Publish(ctx context.Context, payload any, destination string) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, payload any, destination string) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, payload any, destination string) error {
	return f(ctx, payload, destination)
}

// LogPublisher writes each message to a logger instead of a broker. It backs
// local runs where no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.Default(logger)}
}

// Publish logs the encoded payload.
func (p *LogPublisher) Publish(ctx context.Context, payload any, destination string) error {
	if destination == "" {
		return ErrNoDestination
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "message published",
		"destination", destination,
		"payload", string(body),
	)
	return nil
}
