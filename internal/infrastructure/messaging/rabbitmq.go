package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnState is the broker connection lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var ErrNotConnected = errors.New("rabbitmq: not connected")

// Config bounds the connection manager. Prefetch caps in-flight deliveries
// per channel; the reconnect fields shape the capped exponential backoff.
type Config struct {
	URI               string
	Exchange          string
	Prefetch          int
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int
}

// RabbitMQ owns one connection and one channel to the broker. On a
// connection or channel error it tears down its handles and schedules
// exactly one reconnection attempt chain; a guard keeps a second close
// notification from spawning a duplicate chain.
type RabbitMQ struct {
	cfg    Config
	logger logging.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	state        atomic.Int32
	reconnecting atomic.Bool
	closed       atomic.Bool

	onReady func(ch *amqp.Channel) error

	failed   chan struct{}
	failOnce sync.Once
}

func NewRabbitMQ(cfg Config, logger logging.Logger) *RabbitMQ {
	return &RabbitMQ{
		cfg:    cfg,
		logger: logger,
		failed: make(chan struct{}),
	}
}

// OnReady registers the callback invoked after every successful (re)connect,
// with the fresh channel. The orchestrator uses it to re-declare topology
// and restart consumers. Must be set before Connect.
func (r *RabbitMQ) OnReady(fn func(ch *amqp.Channel) error) {
	r.onReady = fn
}

// Connect dials the broker, opens the channel, declares the topic exchange
// and applies the prefetch bound. Safe to call again after a failure.
func (r *RabbitMQ) Connect() error {
	conn, err := r.connect()
	if err != nil {
		return err
	}

	go r.watch(conn)
	return nil
}

// connect performs the full dial-to-ready sequence without arming the close
// watcher; any failure tears the connection down completely so no handles
// or half-started consumers outlive the attempt.
func (r *RabbitMQ) connect() (*amqp.Connection, error) {
	r.state.Store(int32(StateConnecting))

	conn, err := amqp.Dial(r.cfg.URI)
	if err != nil {
		r.state.Store(int32(StateDisconnected))
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		r.state.Store(int32(StateDisconnected))
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		r.cfg.Exchange, // name
		"topic",        // kind
		true,           // durable
		false,          // auto-delete
		false,          // internal
		false,          // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		r.state.Store(int32(StateDisconnected))
		return nil, fmt.Errorf("failed to declare exchange %s: %w", r.cfg.Exchange, err)
	}

	if err := ch.Qos(r.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		r.state.Store(int32(StateDisconnected))
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.channel = ch
	r.mu.Unlock()
	r.state.Store(int32(StateConnected))

	r.logger.Info(logging.RabbitMQ, logging.Startup, "broker connected", map[logging.ExtraKey]any{
		"exchange": r.cfg.Exchange,
		"prefetch": r.cfg.Prefetch,
	})

	if r.onReady != nil {
		if err := r.onReady(ch); err != nil {
			// Closing the connection also stops any consumer the callback
			// managed to start before failing.
			ch.Close()
			conn.Close()
			r.mu.Lock()
			r.conn = nil
			r.channel = nil
			r.mu.Unlock()
			r.state.Store(int32(StateDisconnected))
			return nil, fmt.Errorf("broker ready callback failed: %w", err)
		}
	}

	return conn, nil
}

// watch waits for the connection to die and kicks off the reconnect chain.
func (r *RabbitMQ) watch(conn *amqp.Connection) {
	closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if r.closed.Load() {
		return
	}

	r.state.Store(int32(StateDisconnected))
	r.logger.Error(logging.RabbitMQ, logging.Reconnect, "broker connection lost", map[logging.ExtraKey]any{
		logging.ErrorMessage: fmt.Sprintf("%v", closeErr),
	})

	// Single-flight: a channel-level and a connection-level close event may
	// both fire, but only one reconnect chain may run.
	if !r.reconnecting.CompareAndSwap(false, true) {
		return
	}

	go r.reconnect()
}

func (r *RabbitMQ) reconnect() {
	delay := r.cfg.ReconnectBase
	for attempt := 1; attempt <= r.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(delay)
		if r.closed.Load() {
			r.reconnecting.Store(false)
			return
		}

		r.logger.Info(logging.RabbitMQ, logging.Reconnect, "reconnecting to broker", map[logging.ExtraKey]any{
			"attempt": attempt,
			"delay":   delay.String(),
		})
		metrics.Reconnects.Inc()

		conn, err := r.connect()
		if err == nil {
			// Release the single-flight guard before arming the watcher, so
			// a connection that dies immediately can claim it again.
			r.reconnecting.Store(false)
			go r.watch(conn)
			return
		}
		r.logger.Warn(logging.RabbitMQ, logging.Reconnect, "reconnect attempt failed", map[logging.ExtraKey]any{
			"attempt":            attempt,
			logging.ErrorMessage: err.Error(),
		})

		delay = NextDelay(delay, r.cfg.ReconnectMax)
	}

	// Out of attempts. Surface the failure for operators; no further
	// automatic recovery.
	r.logger.Error(logging.RabbitMQ, logging.Reconnect, "broker reconnect attempts exhausted", map[logging.ExtraKey]any{
		"attempts": r.cfg.ReconnectAttempts,
	})
	r.reconnecting.Store(false)
	r.failOnce.Do(func() { close(r.failed) })
}

// NextDelay doubles the backoff delay up to the configured ceiling.
func NextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// Failed is closed when reconnection gives up for good.
func (r *RabbitMQ) Failed() <-chan struct{} {
	return r.failed
}

func (r *RabbitMQ) State() ConnState {
	return ConnState(r.state.Load())
}

// Channel returns the current channel, or nil when disconnected.
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

// PublishToQueue publishes directly to a named queue through the default
// exchange. Used by the durable-retry policy to park exhausted messages.
func (r *RabbitMQ) PublishToQueue(ctx context.Context, queue string, pub amqp.Publishing) error {
	r.mu.Lock()
	ch := r.channel
	r.mu.Unlock()

	if ch == nil {
		return ErrNotConnected
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}
	return nil
}

func (r *RabbitMQ) Close() {
	r.closed.Store(true)
	r.state.Store(int32(StateDisconnected))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
