package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the token bucket with Redis so the limit holds across
// edge instances behind one load balancer.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) GetterSetter {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(key string) (int, error) {
	val, err := r.client.Get(context.Background(), key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, err
	}
	return val, nil
}

func (r *RedisCache) Set(key string, value int) error {
	return r.SetWithExpiration(key, value, 0)
}

func (r *RedisCache) SetWithExpiration(key string, value int, expiration time.Duration) error {
	return r.client.Set(context.Background(), key, value, expiration).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
