package events

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/messaging"
	"github.com/lumenchat/lumen/internal/infrastructure/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// FailurePolicy decides what happens to a delivery whose handler (or
// decoder) failed. The policy is bound per consumer group at startup, not
// per message.
type FailurePolicy interface {
	HandleFailure(ctx context.Context, d amqp.Delivery, cause error) error
}

// DropPolicy discards failed deliveries. Bound to ephemeral queues, where
// retrying a stale realtime notification would be worse than losing it.
type DropPolicy struct {
	queue  string
	logger logging.Logger
}

func NewDropPolicy(queue string, logger logging.Logger) *DropPolicy {
	return &DropPolicy{queue: queue, logger: logger}
}

func (p *DropPolicy) HandleFailure(ctx context.Context, d amqp.Delivery, cause error) error {
	p.logger.Warn(logging.Events, logging.Consume, "dropping failed message", map[logging.ExtraKey]any{
		logging.QueueName:     p.queue,
		logging.CorrelationID: CorrelationIDFrom(ctx),
		logging.ErrorMessage:  cause.Error(),
	})
	metrics.EventsConsumed.WithLabelValues(p.queue, metrics.OutcomeDropped).Inc()

	// No DLX on the ephemeral queue, so a nack without requeue is a drop.
	return d.Nack(false, false)
}

// ParkingPublisher publishes a message copy straight into a named queue.
type ParkingPublisher interface {
	PublishToQueue(ctx context.Context, queue string, pub amqp.Publishing) error
}

// RetryPolicy implements the timed-retry chain of a durable consumer group.
// A failed delivery below the retry budget is rejected into the waiting
// room, whose fixed TTL dead-letters it back to the main queue. At the
// budget, a copy with failure metadata is parked and the original is acked
// so the main queue is never blocked by a poison message.
type RetryPolicy struct {
	queues     messaging.RetryQueues
	maxRetries int
	publisher  ParkingPublisher
	logger     logging.Logger
}

func NewRetryPolicy(queues messaging.RetryQueues, maxRetries int, publisher ParkingPublisher, logger logging.Logger) *RetryPolicy {
	return &RetryPolicy{
		queues:     queues,
		maxRetries: maxRetries,
		publisher:  publisher,
		logger:     logger,
	}
}

func (p *RetryPolicy) HandleFailure(ctx context.Context, d amqp.Delivery, cause error) error {
	retries := waitingCycleCount(d.Headers, p.queues.Waiting)

	if retries < int64(p.maxRetries) {
		p.logger.Warn(logging.Events, logging.Retry, "message rejected for timed retry", map[logging.ExtraKey]any{
			logging.QueueName:     p.queues.Main,
			logging.CorrelationID: CorrelationIDFrom(ctx),
			logging.RetryCount:    retries,
			logging.ErrorMessage:  cause.Error(),
		})
		metrics.EventsConsumed.WithLabelValues(p.queues.Main, metrics.OutcomeRetried).Inc()

		// Dead-letters into the waiting room; its TTL is the retry timer.
		return d.Nack(false, false)
	}

	parked := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers: amqp.Table{
			"x-failure-reason": cause.Error(),
			"x-failed-at":      time.Now().UTC().Format(time.RFC3339),
			"x-original-queue": p.queues.Main,
			"x-retry-count":    retries,
		},
	}

	if err := p.publisher.PublishToQueue(ctx, p.queues.Parking, parked); err != nil {
		// Could not park; keep the message in the retry loop rather than
		// lose it. One more waiting-room cycle buys another attempt.
		p.logger.Error(logging.Events, logging.ParkedMsg, "failed to park message, rejecting for retry", map[logging.ExtraKey]any{
			logging.QueueName:     p.queues.Parking,
			logging.CorrelationID: CorrelationIDFrom(ctx),
			logging.ErrorMessage:  err.Error(),
		})
		if nackErr := d.Nack(false, false); nackErr != nil {
			return fmt.Errorf("failed to reject after park failure: %w", nackErr)
		}
		return err
	}

	p.logger.Error(logging.Events, logging.ParkedMsg, "message parked after exhausting retries", map[logging.ExtraKey]any{
		logging.QueueName:     p.queues.Parking,
		logging.CorrelationID: CorrelationIDFrom(ctx),
		logging.RetryCount:    retries,
		logging.ErrorMessage:  cause.Error(),
	})
	metrics.EventsConsumed.WithLabelValues(p.queues.Main, metrics.OutcomeParked).Inc()

	// The copy is safely parked; the original leaves the main queue for good.
	return d.Ack(false)
}

// waitingCycleCount reads how many times this message has already been
// through the waiting room, from the broker's own x-death bookkeeping.
func waitingCycleCount(headers amqp.Table, waitingQueue string) int64 {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok {
		return 0
	}

	for _, entry := range deaths {
		death, ok := entry.(amqp.Table)
		if !ok {
			continue
		}
		queue, _ := death["queue"].(string)
		if queue != waitingQueue {
			continue
		}
		if count, ok := death["count"].(int64); ok {
			return count
		}
	}

	return 0
}
