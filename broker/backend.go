// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"time"
)

// Backend is the storage and pub/sub engine behind a Pool. All methods
// are safe for concurrent use. Read operations return ErrNotFound for
// missing or expired keys and fields.
type Backend interface {
	// Get returns the value stored at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with no expiry.
	Set(ctx context.Context, key string, value []byte) error

	// SetTTL stores value at key with the given expiry.
	SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Incr atomically increments the integer value at key, creating it
	// at zero first if absent, and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// HGet returns one field of the hash at key.
	HGet(ctx context.Context, key, field string) ([]byte, error)

	// HSet stores the given fields into the hash at key, creating the
	// hash if absent and overwriting existing fields.
	HSet(ctx context.Context, key string, fields map[string][]byte) error

	// HGetAll returns every field of the hash at key. A missing hash
	// yields an empty map, not an error, matching Redis semantics.
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// HDel removes fields from the hash at key.
	HDel(ctx context.Context, key string, fields ...string) error

	// Expire sets or replaces the expiry on an existing key or hash.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Publish delivers payload to every current subscriber of channel.
	// Delivery is at-most-once: absent subscribers miss the message.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers a subscriber on channel and returns the
	// message stream. The stream is closed when ctx is canceled or
	// stop is called. Stop is idempotent.
	Subscribe(ctx context.Context, channel string) (messages <-chan []byte, stop func(), err error)

	// Close releases the backend's resources. Only the Hub calls this.
	Close() error
}
