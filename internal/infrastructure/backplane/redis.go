package backplane

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBus carries backplane frames over a Redis pub/sub channel. Publish
// and subscribe use two dedicated connections so a broadcast surge on one
// side cannot starve the other, and both stay independent of the broker
// consumer's connection.
type RedisBus struct {
	pub     *redis.Client
	sub     *redis.Client
	channel string
	pubsub  *redis.PubSub
}

type RedisConfig struct {
	Addr     string
	Password string
	Channel  string
}

func NewRedisBus(cfg RedisConfig) *RedisBus {
	return &RedisBus{
		pub: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
		}),
		sub: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
		}),
		channel: cfg.Channel,
	}
}

func (r *RedisBus) Publish(ctx context.Context, payload []byte) error {
	return r.pub.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	r.pubsub = r.sub.Subscribe(ctx, r.channel)

	// Wait for the subscription to be confirmed so an emit issued right
	// after startup is not lost.
	if _, err := r.pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan []byte, 256)
	go func() {
		defer close(out)
		for msg := range r.pubsub.Channel() {
			out <- []byte(msg.Payload)
		}
	}()

	return out, nil
}

func (r *RedisBus) Close() error {
	if r.pubsub != nil {
		_ = r.pubsub.Close()
	}
	_ = r.sub.Close()
	return r.pub.Close()
}
