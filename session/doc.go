// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package session tracks per-participant state on the Central broker.
//
// A session is created on a participant's first contact and replaced
// whole on every subsequent contact. Nothing in the core deletes a
// session; lifetime is the broker's concern (explicit logout clears
// the person but keeps the session). The hash shape on the broker is
// stable and shared with other processes, so field names here are
// wire format, not implementation detail.
package session
