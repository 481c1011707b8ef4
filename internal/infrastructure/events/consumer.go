package events

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenchat/lumen/internal/domain"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/metrics"
	"github.com/lumenchat/lumen/internal/infrastructure/tracing"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
)

// HandlerFunc processes one normalized event.
type HandlerFunc func(ctx context.Context, evt domain.Event) error

// Consumer is the message pump for one queue: it decodes deliveries, runs
// the matching handler under a request-scoped context, and acks or defers
// to the bound failure policy. Concurrency is bounded by the channel's
// prefetch; the pump never settles a delivery before its handler returns.
type Consumer struct {
	queue    string
	handlers map[string]HandlerFunc
	policy   FailurePolicy
	logger   logging.Logger
}

func NewConsumer(queue string, handlers map[string]HandlerFunc, policy FailurePolicy, logger logging.Logger) *Consumer {
	return &Consumer{
		queue:    queue,
		handlers: handlers,
		policy:   policy,
		logger:   logger,
	}
}

// Start begins consuming on the given channel. The pump goroutine exits
// when the channel dies; the orchestrator restarts consumers on reconnect.
func (c *Consumer) Start(ctx context.Context, ch *amqp.Channel) error {
	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}

	go c.pump(ctx, deliveries)

	c.logger.Info(logging.Events, logging.Consume, "consumer started", map[logging.ExtraKey]any{
		logging.QueueName: c.queue,
	})

	return nil
}

func (c *Consumer) pump(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		c.handleDelivery(ctx, d)
	}

	c.logger.Warn(logging.Events, logging.Consume, "consumer channel closed", map[logging.ExtraKey]any{
		logging.QueueName: c.queue,
	})
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	evt, err := domain.DecodeEvent(d.Body)
	if err != nil {
		// Decode failure follows the same policy as a handler failure.
		if policyErr := c.policy.HandleFailure(scopedContext(ctx, "", ""), d, err); policyErr != nil {
			c.logger.Error(logging.Events, logging.Consume, "failure policy error", map[logging.ExtraKey]any{
				logging.QueueName:    c.queue,
				logging.ErrorMessage: policyErr.Error(),
			})
		}
		return
	}

	msgCtx := scopedContext(ctx, evt.Metadata.CorrelationID, evt.Metadata.UserID)

	msgCtx, span := tracing.GetTracer("events").Start(msgCtx, "consume "+evt.Type)
	span.SetAttributes(
		attribute.String("messaging.destination", c.queue),
		attribute.String("event.id", evt.ID),
		attribute.String("correlation.id", CorrelationIDFrom(msgCtx)),
	)
	defer span.End()

	handler, ok := c.handlers[evt.Type]
	if !ok {
		// Bound routing key with no handler; nothing useful to retry.
		c.logger.Warn(logging.Events, logging.Consume, "no handler for event type", map[logging.ExtraKey]any{
			logging.QueueName: c.queue,
			logging.EventType: evt.Type,
		})
		_ = d.Ack(false)
		return
	}

	start := time.Now()
	err = handler(msgCtx, evt)
	metrics.HandlerDuration.WithLabelValues(evt.Type).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		if policyErr := c.policy.HandleFailure(msgCtx, d, err); policyErr != nil {
			c.logger.Error(logging.Events, logging.Consume, "failure policy error", map[logging.ExtraKey]any{
				logging.QueueName:     c.queue,
				logging.EventType:     evt.Type,
				logging.CorrelationID: CorrelationIDFrom(msgCtx),
				logging.ErrorMessage:  policyErr.Error(),
			})
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error(logging.Events, logging.Consume, "failed to ack message", map[logging.ExtraKey]any{
			logging.QueueName:    c.queue,
			logging.EventType:    evt.Type,
			logging.ErrorMessage: err.Error(),
		})
		return
	}
	metrics.EventsConsumed.WithLabelValues(c.queue, metrics.OutcomeAcked).Inc()
}
