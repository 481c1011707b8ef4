package messaging

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RetryQueues names the three queues of a durable consumer group.
type RetryQueues struct {
	Main    string
	Waiting string
	Parking string
}

// RetryQueueNames derives the queue trio for a consumer group.
func RetryQueueNames(group string) RetryQueues {
	return RetryQueues{
		Main:    group,
		Waiting: group + ".waiting",
		Parking: group + ".parking-lot",
	}
}

// mainQueueArgs dead-letters rejected messages into the waiting room via the
// default exchange.
func mainQueueArgs(waiting string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": waiting,
	}
}

// waitingQueueArgs gives the waiting room its fixed TTL, after which expired
// messages dead-letter back into the main queue. The TTL is the retry timer.
func waitingQueueArgs(main string, ttl time.Duration) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": main,
		"x-message-ttl":             ttl.Milliseconds(),
	}
}

// DeclareEphemeralQueue declares a non-durable auto-deleting queue for
// best-effort events and binds it to its routing keys. No dead-lettering:
// rejected messages are simply gone.
func (r *RabbitMQ) DeclareEphemeralQueue(ch *amqp.Channel, name string, keys []string) (string, error) {
	q, err := ch.QueueDeclare(
		name,  // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare ephemeral queue %s: %w", name, err)
	}

	if err := bindQueue(ch, q.Name, r.cfg.Exchange, keys); err != nil {
		return "", err
	}

	return q.Name, nil
}

// DeclareRetryTopology declares the durable main/waiting-room/parking-lot
// trio for a critical consumer group. Only the main queue is bound to
// business routing keys; the waiting room and the parking lot are reached
// exclusively through dead-lettering and explicit parking publishes.
func (r *RabbitMQ) DeclareRetryTopology(ch *amqp.Channel, group string, waitTTL time.Duration, keys []string) (RetryQueues, error) {
	queues := RetryQueueNames(group)

	if _, err := ch.QueueDeclare(queues.Main, true, false, false, false, mainQueueArgs(queues.Waiting)); err != nil {
		return queues, fmt.Errorf("failed to declare main queue %s: %w", queues.Main, err)
	}

	if _, err := ch.QueueDeclare(queues.Waiting, true, false, false, false, waitingQueueArgs(queues.Main, waitTTL)); err != nil {
		return queues, fmt.Errorf("failed to declare waiting queue %s: %w", queues.Waiting, err)
	}

	if _, err := ch.QueueDeclare(queues.Parking, true, false, false, false, nil); err != nil {
		return queues, fmt.Errorf("failed to declare parking-lot queue %s: %w", queues.Parking, err)
	}

	if err := bindQueue(ch, queues.Main, r.cfg.Exchange, keys); err != nil {
		return queues, err
	}

	return queues, nil
}

func bindQueue(ch *amqp.Channel, queue, exchange string, keys []string) error {
	for _, key := range keys {
		if err := ch.QueueBind(
			queue,    // queue name
			key,      // routing key
			exchange, // exchange
			false,
			nil,
		); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", queue, key, err)
		}
	}
	return nil
}
