// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"
)

// PoolKind distinguishes the two logical broker pools.
type PoolKind int

const (
	// PoolCentral is the shared cross-node pool.
	PoolCentral PoolKind = iota
	// PoolLocal is the node-private pool.
	PoolLocal
)

// String returns "central" or "local".
func (k PoolKind) String() string {
	switch k {
	case PoolCentral:
		return "central"
	case PoolLocal:
		return "local"
	}
	return fmt.Sprintf("PoolKind(%d)", int(k))
}

// Key is a namespaced broker key tagged with the pool it must be used
// against. Keys are only minted by the registry functions in bible.go.
type Key struct {
	name string
	pool PoolKind
}

// String returns the namespaced key string (e.g. "atrium:ticket:next").
func (k Key) String() string { return k.name }

// Pool returns the pool this key belongs to.
func (k Key) Pool() PoolKind { return k.pool }

// ChannelKind distinguishes the two parallel channel families.
type ChannelKind int

const (
	// ByteChannel carries CBOR-framed dialog pairs.
	ByteChannel ChannelKind = iota
	// TextChannel carries "<participant>::<text>" frames for
	// lightweight consoles.
	TextChannel
)

// Channel is a named pub/sub channel tagged with its pool and payload
// kind. Channels are only minted by the registry functions in bible.go.
type Channel struct {
	name string
	pool PoolKind
	kind ChannelKind
}

// String returns the channel name.
func (c Channel) String() string { return c.name }

// Pool returns the pool this channel belongs to.
func (c Channel) Pool() PoolKind { return c.pool }

// Kind returns the channel's payload kind.
func (c Channel) Kind() ChannelKind { return c.kind }

// PoolMismatchError reports a typed key or channel used against the
// wrong broker pool. This is a programming error in the caller's
// topology wiring, not a runtime condition: callers should fail fast.
type PoolMismatchError struct {
	// Name is the key or channel name that was misused.
	Name string
	// Required is the pool the key belongs to.
	Required PoolKind
	// Called is the pool the operation was attempted on.
	Called PoolKind
}

func (e *PoolMismatchError) Error() string {
	return fmt.Sprintf("broker: key %q requires the %s pool, used against the %s pool",
		e.Name, e.Required, e.Called)
}

// IsPoolMismatch reports whether err is a *PoolMismatchError.
func IsPoolMismatch(err error) bool {
	var mismatch *PoolMismatchError
	return errors.As(err, &mismatch)
}

// ErrNotFound is returned by read operations when the key or hash
// field does not exist (or has expired).
var ErrNotFound = errors.New("broker: key not found")

// ErrPoolCloseNotPermitted is returned by Pool.Close. Pool teardown
// belongs to the Hub; a handler that reaches Close anyway has its
// resources released first and then receives this error.
var ErrPoolCloseNotPermitted = errors.New("broker: pool close is owned by the hub, not by handlers")
