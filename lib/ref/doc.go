// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated reference types for Atrium identities:
// participant IDs, room IDs, capability IDs, and language tags.
//
// Each type is an immutable value type wrapping a validated string. The
// zero value is never valid; use IsZero to check. Construction goes
// through Parse* functions that validate the raw string, or MustParse*
// variants that panic on invalid input (for tests and static
// initialization where the input is known-valid).
//
// All types implement encoding.TextMarshaler and TextUnmarshaler, so
// they serialize as plain strings through JSON, YAML, and CBOR, with
// validation applied automatically on deserialization.
//
// This package has no dependencies outside the standard library and
// google/uuid. Everything else in Atrium depends on it; it depends on
// nothing else in Atrium.
package ref
