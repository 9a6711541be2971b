// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package dialog implements the external wire protocol between remote
// participants and Central.
//
// A dialog travels the byte channels as a two-item CBOR sequence: a
// small [Header] carrying only the destination, then the dialog body
// wrapped in a kind-tagged frame. Receivers decode the header first
// and stop there for traffic addressed to someone else; only broadcast
// traffic and traffic addressed to the receiver gets its body decoded
// into application types.
//
// [Dialog] is a sealed sum over [*Request] and [*Response]. Both carry
// an optional [Payload], itself a sealed sum, used for structured
// exchanges such as login.
//
// Encoding enforces validity before any bytes are produced and a hard
// size ceiling after; decoding never panics on malformed input, it
// fails with [*MalformedMessageError] so the subscriber loop can log
// and drop.
package dialog
