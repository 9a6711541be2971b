// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// readTimeout bounds individual broker commands. Subscriptions are
// exempt; they block by design.
const readTimeout = 5 * time.Second

// RedisBackend is the production Backend: a thin adapter over a Redis
// client. One RedisBackend per pool; the Central pool points at the
// shared deployment broker, the Local pool at the node's own instance.
type RedisBackend struct {
	client *redis.Client
}

// RedisConfig locates one Redis instance.
type RedisConfig struct {
	// Address is "host:port".
	Address string

	// Password is the server password, empty for none.
	Password string

	// Database is the Redis database number.
	Database int
}

// NewRedisBackend connects to the configured Redis instance. The
// connection is verified with a ping so a misconfigured address fails
// at startup rather than on first use.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.Database,
		ReadTimeout: readTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("broker: connecting to redis at %s: %w", cfg.Address, err)
	}
	return &RedisBackend{client: client}, nil
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return value, err
}

// Set implements Backend.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.client.Set(ctx, key, value, 0).Err()
}

// SetTTL implements Backend.
func (b *RedisBackend) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

// Incr implements Backend.
func (b *RedisBackend) Incr(ctx context.Context, key string) (int64, error) {
	return b.client.Incr(ctx, key).Result()
}

// Del implements Backend.
func (b *RedisBackend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// HGet implements Backend.
func (b *RedisBackend) HGet(ctx context.Context, key, field string) ([]byte, error) {
	value, err := b.client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return value, err
}

// HSet implements Backend.
func (b *RedisBackend) HSet(ctx context.Context, key string, fields map[string][]byte) error {
	args := make(map[string]any, len(fields))
	for field, value := range fields {
		args[field] = value
	}
	return b.client.HSet(ctx, key, args).Err()
}

// HGetAll implements Backend.
func (b *RedisBackend) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	values, err := b.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(values))
	for field, value := range values {
		out[field] = []byte(value)
	}
	return out, nil
}

// HDel implements Backend.
func (b *RedisBackend) HDel(ctx context.Context, key string, fields ...string) error {
	return b.client.HDel(ctx, key, fields...).Err()
}

// Expire implements Backend.
func (b *RedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	set, err := b.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return err
	}
	if !set {
		return ErrNotFound
	}
	return nil
}

// Publish implements Backend.
func (b *RedisBackend) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe implements Backend. The returned stream closes when ctx
// is canceled or stop is called.
func (b *RedisBackend) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	pubsub := b.client.Subscribe(ctx, channel)
	// Force the subscription to be established before returning, so a
	// publish immediately after Subscribe is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	messages := make(chan []byte)
	done := make(chan struct{})
	go func() {
		defer close(messages)
		incoming := pubsub.Channel()
		for {
			select {
			case msg, ok := <-incoming:
				if !ok {
					return
				}
				select {
				case messages <- []byte(msg.Payload):
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
	return messages, stop, nil
}

// Close implements Backend. Only the Hub calls this.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
