package services

import (
	"context"
	"log/slog"

	"timesheet/internal/aggregator"
	"timesheet/internal/amqp"
)

// ChangeConsumer delivers entry change events until the context ends.
type ChangeConsumer interface {
	ConsumeEntryChanges(ctx context.Context, handler func(*amqp.EntryChangeMessage) error) error
}

// AggregationProcessor wires change-event deliveries to the incremental
// aggregator. Returning an error from the handler nacks the delivery
// back to the queue, so a failed transaction is redelivered rather than
// retried in-process.
type AggregationProcessor struct {
	consumer  ChangeConsumer
	processor *aggregator.Processor
}

func NewAggregationProcessor(consumer ChangeConsumer, processor *aggregator.Processor) *AggregationProcessor {
	return &AggregationProcessor{consumer: consumer, processor: processor}
}

// Run consumes change events until ctx is cancelled.
func (p *AggregationProcessor) Run(ctx context.Context) error {
	return p.consumer.ConsumeEntryChanges(ctx, func(msg *amqp.EntryChangeMessage) error {
		if msg.Before == nil && msg.After == nil {
			slog.WarnContext(ctx, "Change event with no snapshots", "entry_id", msg.EntryID)
			return nil
		}
		return p.processor.Apply(ctx, msg.Before, msg.After)
	})
}
