// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import "context"

// Counter mints monotonically increasing IDs from a dedicated broker
// counter key. Ticket IDs, document IDs, candidate package IDs,
// participant IDs, media cache entries, and error records each have
// their own Counter over their own registry key, so the sequences
// never interleave.
type Counter struct {
	pool *Pool
	key  Key
}

// NewCounter binds a counter key to the pool it lives on. The pool
// mismatch check happens on first use, like any other keyed operation.
func NewCounter(pool *Pool, key Key) *Counter {
	return &Counter{pool: pool, key: key}
}

// Next returns the next ID in the sequence. The first ID issued is 1.
func (c *Counter) Next(ctx context.Context) (int64, error) {
	return c.pool.Increment(ctx, c.key)
}
