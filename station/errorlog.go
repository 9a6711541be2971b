// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package station

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atrium-foundation/atrium/broker"
)

// errorRetention is how long a recorded error stays readable.
const errorRetention = 30 * 24 * time.Hour

// Hash field names for one error record.
const (
	fieldSource    = "source"
	fieldMessage   = "message"
	fieldTimestamp = "timestamp"
)

// ErrorLog records operational errors in the Central broker so they
// survive the process and are visible to other nodes.
type ErrorLog struct {
	central *broker.Pool
	counter *broker.Counter
	logger  *slog.Logger
}

func NewErrorLog(central *broker.Pool, logger *slog.Logger) *ErrorLog {
	return &ErrorLog{
		central: central,
		counter: broker.NewCounter(central, broker.ErrorCounterKey()),
		logger:  logger.With("component", "errorlog"),
	}
}

// Record persists one error under a fresh ID and returns the ID.
// Recording is best-effort; a broker failure here is logged and
// swallowed, since the error log must never take down the path that
// is trying to report a problem.
func (l *ErrorLog) Record(ctx context.Context, source string, recorded error) int64 {
	id, err := l.counter.Next(ctx)
	if err != nil {
		l.logger.Error("minting error record ID", "error", err)
		return 0
	}

	key := broker.ErrorHashKey(id)
	fields := map[string][]byte{
		fieldSource:    []byte(source),
		fieldMessage:   []byte(recorded.Error()),
		fieldTimestamp: []byte(time.Now().UTC().Format(time.RFC3339Nano)),
	}
	if err := l.central.HashSet(ctx, key, fields); err != nil {
		l.logger.Error("writing error record", "id", id, "error", err)
		return 0
	}
	if err := l.central.Expire(ctx, key, errorRetention); err != nil {
		l.logger.Error("setting error record expiry", "id", id, "error", err)
	}
	return id
}

// Lookup reads one error record back.
func (l *ErrorLog) Lookup(ctx context.Context, id int64) (source, message string, found bool, err error) {
	fields, err := l.central.HashGetAll(ctx, broker.ErrorHashKey(id))
	if err != nil {
		return "", "", false, fmt.Errorf("station: reading error record %d: %w", id, err)
	}
	if len(fields) == 0 {
		return "", "", false, nil
	}
	return string(fields[fieldSource]), string(fields[fieldMessage]), true, nil
}
