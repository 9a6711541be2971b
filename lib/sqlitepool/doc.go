// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides Atrium's standard SQLite connection pool.
//
// Central's durable structured data (the capability catalog, the
// person registry) lives in SQLite through this package. It wraps
// zombiezen.com/go/sqlite with settled defaults: WAL journal mode,
// NORMAL synchronous, a busy timeout instead of immediate SQLITE_BUSY,
// and foreign keys enforced.
//
// Callers [Pool.Take] a connection, work, and [Pool.Put] it back.
// Connections are not safe for concurrent use; each goroutine holds
// its own for the duration of its work.
//
// The package is deliberately thin. There is no query builder and no
// attempt to hide SQLite's connection model: callers write SQL, use
// sqlitex.Execute for cached statements, and manage transactions with
// sqlitex.ImmediateTransaction. Schema creation belongs in the
// OnConnect hook so every connection in the pool sees the same tables.
package sqlitepool
