// internal/digest/aggregator.go
package digest

import (
	"context"
	"log/slog"

	"libraryservice/internal/catalog"
	"libraryservice/internal/logging"
	"libraryservice/internal/membership"
	"libraryservice/internal/paging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SubscriptionSource pages through the active subscriptions of a category.
type SubscriptionSource interface {
	ActiveSubscriptions(ctx context.Context, category string, page paging.Page) (paging.Slice[membership.Subscription], error)
}

// Aggregator folds active subscriptions into a CategoryRecipientMap.
type Aggregator struct {
	source   SubscriptionSource
	pageSize int
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewAggregator(source SubscriptionSource, pageSize int, logger *slog.Logger) *Aggregator {
	if pageSize <= 0 {
		pageSize = paging.DefaultSize
	}
	return &Aggregator{
		source:   source,
		pageSize: pageSize,
		logger:   logging.Default(logger),
		tracer:   otel.Tracer("libraryservice/digest"),
	}
}

// BuildRecipientMap returns a map holding a key for every category present
// in books. A category whose subscriptions cannot be loaded is logged and
// left with an empty set; the remaining categories are still resolved.
func (a *Aggregator) BuildRecipientMap(ctx context.Context, books []catalog.Book) CategoryRecipientMap {
	ctx, span := a.tracer.Start(ctx, "digest.build_recipient_map",
		trace.WithAttributes(attribute.Int("books", len(books))),
	)
	defer span.End()

	logger := logging.For(ctx, a.logger, "digest", "build_recipient_map")
	result := make(CategoryRecipientMap)

	for _, book := range books {
		if _, seen := result[book.Category]; seen {
			continue
		}

		recipients := make(RecipientSet)
		err := paging.Walk(ctx, a.pageSize,
			func(ctx context.Context, page paging.Page) (paging.Slice[membership.Subscription], error) {
				return a.source.ActiveSubscriptions(ctx, book.Category, page)
			},
			func(subs []membership.Subscription) {
				for _, sub := range subs {
					recipients.Add(sub.HolderEmail)
				}
			},
		)
		if err != nil {
			span.RecordError(err)
			logger.ErrorContext(ctx, "failed to aggregate subscribers",
				"category", book.Category,
				"error", err,
			)
			recipients = make(RecipientSet)
		}
		result[book.Category] = recipients
	}

	span.SetAttributes(attribute.Int("categories", len(result)))
	return result
}
