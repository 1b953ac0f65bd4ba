// internal/digest/dispatcher.go
package digest

import (
	"context"
	"log/slog"

	"libraryservice/internal/catalog"
	"libraryservice/internal/logging"
	"libraryservice/internal/publish"
	"libraryservice/internal/workerpool"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dispatcher turns a recipient map into one publish job per category.
type Dispatcher struct {
	publisher   publish.Publisher
	executor    workerpool.Executor
	destination string
	logger      *slog.Logger

	published metric.Int64Counter
	failed    metric.Int64Counter
}

func NewDispatcher(publisher publish.Publisher, executor workerpool.Executor, destination string, logger *slog.Logger) *Dispatcher {
	meter := otel.Meter("libraryservice/digest")
	published, _ := meter.Int64Counter("digest.jobs.published",
		metric.WithDescription("Digest messages accepted by the broker"))
	failed, _ := meter.Int64Counter("digest.jobs.failed",
		metric.WithDescription("Digest messages that could not be published"))

	return &Dispatcher{
		publisher:   publisher,
		executor:    executor,
		destination: destination,
		logger:      logging.Default(logger),
		published:   published,
		failed:      failed,
	}
}

// Jobs builds one job per key of recipients, carrying every book of that
// category. Categories with no subscribers still produce a job.
func Jobs(recipients CategoryRecipientMap, books []catalog.Book) []Job {
	items := itemsByCategory(books)
	jobs := make([]Job, 0, len(recipients))
	for _, category := range recipients.Categories() {
		jobs = append(jobs, Job{
			Category:   category,
			Recipients: recipients[category].Sorted(),
			Items:      items[category],
		})
	}
	return jobs
}

// Dispatch submits every job and returns the number accepted by the
// executor. It does not wait for publishing; each job's failure is logged
// on its own and never affects the others.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients CategoryRecipientMap, books []catalog.Book) int {
	logger := logging.For(ctx, d.logger, "digest", "dispatch")
	jobCtx := context.WithoutCancel(ctx)

	submitted := 0
	for _, job := range Jobs(recipients, books) {
		job := job
		err := d.executor.Submit(func() { d.run(jobCtx, logger, job) })
		if err != nil {
			d.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "submit")))
			logger.ErrorContext(ctx, "failed to submit digest job", "category", job.Category, "error", err)
			continue
		}
		submitted++
	}
	return submitted
}

func (d *Dispatcher) run(ctx context.Context, logger *slog.Logger, job Job) {
	if err := d.publisher.Publish(ctx, job.Message(), d.destination); err != nil {
		d.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "publish")))
		logger.ErrorContext(ctx, "failed to publish digest",
			"category", job.Category,
			"destination", d.destination,
			"error", err,
		)
		return
	}
	d.published.Add(ctx, 1)
	logger.InfoContext(ctx, "digest published",
		"category", job.Category,
		"recipients", len(job.Recipients),
		"items", len(job.Items),
	)
}
