// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker provides Atrium's pub/sub and key/value transport.
//
// Atrium runs against two logical broker pools. The Central pool is
// shared by every node in the deployment and carries cross-node state:
// ticket and participant counters, sessions, the dialog channels
// between stations and Central, the media cache, and the error hash.
// The Local pool is private to one node and holds caches and counters
// that never need to leave the machine (weather cache, treebank tags,
// station identity).
//
// # Typed keys
//
// Every key and channel name is minted by a registry function in
// bible.go. A [Key] records the pool it belongs to; every pool
// operation checks that the key's pool matches the pool being called
// and fails with [*PoolMismatchError] otherwise. A mismatch is a
// topology misconfiguration — Local state leaking onto the shared
// broker or vice versa — so callers are expected to treat it as fatal.
// Hand-constructed keys are a bug by definition.
//
// # Backends
//
// A [Pool] delegates storage to a [Backend]. [NewRedisBackend] is the
// production backend; [NewMemoryBackend] implements the same contract
// in-process for tests and single-node development, so no external
// broker is needed to exercise transport-dependent code.
//
// # Subscriptions
//
// [Pool.Subscribe] starts a blocking receive loop on its own goroutine
// and hands each message to a small worker pool through a bounded
// queue. A slow handler therefore cannot stall the receive loop; when
// the queue is full, messages are dropped and counted (delivery is
// at-most-once end to end, so local shedding does not weaken the
// contract).
//
// # Ownership
//
// The [Hub] owns both pools and is the only sanctioned place to release
// them. [Pool.Close] exists to satisfy io.Closer-shaped plumbing but
// always returns [ErrPoolCloseNotPermitted] — after first actually
// releasing the backend, so a misbehaving caller surfaces an error
// without leaking the connection.
package broker
