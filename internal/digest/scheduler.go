// internal/digest/scheduler.go
package digest

import (
	"context"
	"fmt"
	"log/slog"

	"libraryservice/internal/logging"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule fires every day at 19:00 local time.
const DefaultSchedule = "0 19 * * *"

// Runner is one schedulable pass.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// Scheduler triggers a Runner on a cron schedule. A run still in progress
// causes the next trigger to be skipped, and a panicking run is recovered.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	logger = logging.Default(logger).With("component", "digest-scheduler")
	cl := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover must sit inside SkipIfStillRunning so a panicking run
			// still hands back the run token.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		runner: runner,
		logger: logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new triggers and waits for a running pass or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Scheduler) trigger() {
	ctx := logging.ContextWithLogger(s.ctx, s.logger)
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error("scheduled digest failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.logger.Warn("digest run skipped; previous run still in progress", keysAndValues...)
		return
	}
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
