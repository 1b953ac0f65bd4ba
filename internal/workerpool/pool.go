// Package workerpool runs submitted tasks on a bounded set of goroutines fed
// by an unbounded FIFO backlog.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"libraryservice/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrClosed          = errors.New("workerpool: pool is shut down")
	ErrInvalidCore     = errors.New("workerpool: core workers must be at least 1")
	ErrInvalidMax      = errors.New("workerpool: max workers must not be below core workers")
	ErrInvalidKeepLive = errors.New("workerpool: keep-alive must be positive")
)

// Executor accepts tasks for asynchronous execution.
type Executor interface {
	Submit(task func()) error
}

// Options sizes a Pool.
type Options struct {
	CoreWorkers int
	MaxWorkers  int
	KeepAlive   time.Duration
	Name        string
	Logger      *slog.Logger
}

// DefaultOptions mirrors the sizing used by the notification digest.
func DefaultOptions() Options {
	return Options{CoreWorkers: 2, MaxWorkers: 4, KeepAlive: 60 * time.Second, Name: "default"}
}

// Stats is a point-in-time view of a Pool.
type Stats struct {
	Workers int
	Idle    int
	Queued  int
}

// Pool keeps CoreWorkers goroutines alive and grows to MaxWorkers while the
// backlog is non-empty and no worker is idle. Workers above the core count
// retire after KeepAlive without work. Submit never blocks.
type Pool struct {
	core      int
	max       int
	keepAlive time.Duration
	name      string
	logger    *slog.Logger

	mu      sync.Mutex
	queue   []func()
	workers int
	idle    int
	closed  bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	registration metric.Registration
}

// New validates opts and returns a started Pool.
func New(opts Options) (*Pool, error) {
	if opts.CoreWorkers < 1 {
		return nil, ErrInvalidCore
	}
	if opts.MaxWorkers < opts.CoreWorkers {
		return nil, ErrInvalidMax
	}
	if opts.KeepAlive <= 0 {
		return nil, ErrInvalidKeepLive
	}
	if opts.Name == "" {
		opts.Name = "default"
	}

	p := &Pool{
		core:      opts.CoreWorkers,
		max:       opts.MaxWorkers,
		keepAlive: opts.KeepAlive,
		name:      opts.Name,
		logger:    logging.Default(opts.Logger).With("pool", opts.Name),
		wake:      make(chan struct{}, opts.MaxWorkers),
		done:      make(chan struct{}),
	}
	p.registerMetrics()
	return p, nil
}

// Submit enqueues task and returns immediately.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, task)
	if p.workers < p.core || (p.idle == 0 && p.workers < p.max) {
		p.workers++
		p.wg.Add(1)
		go p.worker()
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stats reports the current worker and backlog sizes.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Workers: p.workers, Idle: p.idle, Queued: len(p.queue)}
}

// Shutdown stops accepting tasks and waits until the backlog is drained or
// ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		if p.registration != nil {
			_ = p.registration.Unregister()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	timer := time.NewTimer(p.keepAlive)
	defer timer.Stop()

	for {
		if task, ok := p.next(); ok {
			p.run(task)
			continue
		}

		p.mu.Lock()
		if len(p.queue) > 0 {
			p.mu.Unlock()
			continue
		}
		if p.closed {
			p.workers--
			p.mu.Unlock()
			return
		}
		p.idle++
		p.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.keepAlive)

		select {
		case <-p.wake:
		case <-p.done:
		case <-timer.C:
			p.mu.Lock()
			p.idle--
			if p.workers > p.core && len(p.queue) == 0 {
				p.workers--
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
			continue
		}

		p.mu.Lock()
		p.idle--
		p.mu.Unlock()
	}
}

func (p *Pool) next() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil, false
	}
	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return task, true
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
}

func (p *Pool) registerMetrics() {
	meter := otel.Meter("libraryservice/workerpool")
	queued, err := meter.Int64ObservableGauge("workerpool.queued",
		metric.WithDescription("Tasks waiting in the backlog"))
	if err != nil {
		return
	}
	workers, err := meter.Int64ObservableGauge("workerpool.workers",
		metric.WithDescription("Live worker goroutines"))
	if err != nil {
		return
	}

	p.registration, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := p.Stats()
		o.ObserveInt64(queued, int64(s.Queued))
		o.ObserveInt64(workers, int64(s.Workers))
		return nil
	}, queued, workers)
}

// Synchronous runs each task inline on Submit. It is meant for tests and
// one-shot tools that need deterministic completion.
type Synchronous struct{}

// Submit runs task before returning.
func (Synchronous) Submit(task func()) error {
	if task != nil {
		task()
	}
	return nil
}
