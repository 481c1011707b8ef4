package events

import (
	"context"
	"errors"
	"testing"

	"github.com/lumenchat/lumen/internal/domain"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePolicy struct {
	failures []error
}

func (f *fakePolicy) HandleFailure(_ context.Context, _ amqp.Delivery, cause error) error {
	f.failures = append(f.failures, cause)
	return nil
}

func TestConsumerAcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	policy := &fakePolicy{}

	var got domain.Event
	c := NewConsumer("q", map[string]HandlerFunc{
		"message.created": func(ctx context.Context, evt domain.Event) error {
			got = evt
			return nil
		},
	}, policy, logging.NewNopLogger())

	d := amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(`{"eventId":"e1","type":"message.created","payload":{"id":"M1"}}`),
	}
	c.handleDelivery(context.Background(), d)

	assert.Equal(t, "message.created", got.Type)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, policy.failures)
}

func TestConsumerScopesContext(t *testing.T) {
	ack := &fakeAcknowledger{}

	var correlationID, userID string
	c := NewConsumer("q", map[string]HandlerFunc{
		"message.created": func(ctx context.Context, evt domain.Event) error {
			correlationID = CorrelationIDFrom(ctx)
			userID = UserIDFrom(ctx)
			return nil
		},
	}, &fakePolicy{}, logging.NewNopLogger())

	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"type":"message.created","payload":{},"metadata":{"correlationId":"corr-9","userId":"U7"}}`),
	})

	assert.Equal(t, "corr-9", correlationID)
	assert.Equal(t, "U7", userID)
}

func TestConsumerGeneratesCorrelationIDWhenMissing(t *testing.T) {
	ack := &fakeAcknowledger{}

	var correlationID string
	c := NewConsumer("q", map[string]HandlerFunc{
		"message.created": func(ctx context.Context, evt domain.Event) error {
			correlationID = CorrelationIDFrom(ctx)
			return nil
		},
	}, &fakePolicy{}, logging.NewNopLogger())

	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"type":"message.created","payload":{}}`),
	})

	assert.NotEmpty(t, correlationID)
}

func TestConsumerTreatsDecodeFailureLikeHandlerFailure(t *testing.T) {
	ack := &fakeAcknowledger{}
	policy := &fakePolicy{}

	c := NewConsumer("q", nil, policy, logging.NewNopLogger())
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{not json`),
	})

	require.Len(t, policy.failures, 1)
	assert.Equal(t, 0, ack.acks)
}

func TestConsumerDelegatesHandlerFailureToPolicy(t *testing.T) {
	ack := &fakeAcknowledger{}
	policy := &fakePolicy{}
	boom := errors.New("boom")

	c := NewConsumer("q", map[string]HandlerFunc{
		"message.created": func(ctx context.Context, evt domain.Event) error {
			return boom
		},
	}, policy, logging.NewNopLogger())

	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"type":"message.created","payload":{}}`),
	})

	require.Len(t, policy.failures, 1)
	assert.ErrorIs(t, policy.failures[0], boom)
	assert.Equal(t, 0, ack.acks)
}

func TestConsumerAcksUnhandledEventType(t *testing.T) {
	ack := &fakeAcknowledger{}
	policy := &fakePolicy{}

	c := NewConsumer("q", map[string]HandlerFunc{}, policy, logging.NewNopLogger())
	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"type":"mystery.event","payload":{}}`),
	})

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, policy.failures)
}

// A handler that fails maxRetries-1 times and then succeeds must end in
// exactly one ack with nothing parked.
func TestRetryThenSuccessNeverParks(t *testing.T) {
	parker := &fakeParker{}
	policy := testRetryPolicy(parker)

	attempts := 0
	c := NewConsumer("crit", map[string]HandlerFunc{
		"channel.deleted": func(ctx context.Context, evt domain.Event) error {
			attempts++
			if attempts <= 2 {
				return errors.New("transient")
			}
			return nil
		},
	}, policy, logging.NewNopLogger())

	totalAcks := 0
	// Each failed cycle comes back with one more waiting-room death.
	for cycle := int64(0); cycle <= 2; cycle++ {
		ack := &fakeAcknowledger{}
		d := deliveryWithWaitingCount(ack, "crit.waiting", cycle)
		c.handleDelivery(context.Background(), d)
		totalAcks += ack.acks
	}

	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, totalAcks)
	assert.Empty(t, parker.published)
}

// A handler that always fails ends in exactly one parking-lot entry after
// maxRetries waiting-room cycles, and the message never recirculates.
func TestAlwaysFailingHandlerParksOnce(t *testing.T) {
	parker := &fakeParker{}
	policy := testRetryPolicy(parker)

	c := NewConsumer("crit", map[string]HandlerFunc{
		"channel.deleted": func(ctx context.Context, evt domain.Event) error {
			return errors.New("permanent")
		},
	}, policy, logging.NewNopLogger())

	for cycle := int64(0); cycle <= 3; cycle++ {
		ack := &fakeAcknowledger{}
		d := deliveryWithWaitingCount(ack, "crit.waiting", cycle)
		c.handleDelivery(context.Background(), d)

		if cycle < 3 {
			assert.Equal(t, 1, ack.nacks)
			assert.Equal(t, 0, ack.acks)
		} else {
			assert.Equal(t, 0, ack.nacks)
			assert.Equal(t, 1, ack.acks)
		}
	}

	require.Len(t, parker.published, 1)
	assert.Equal(t, int64(3), parker.published[0].Headers["x-retry-count"])
}
