// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote is the client side of the dialog wire: what a
// console or embedded station links against to talk to Atrium
// Central.
//
// A Client owns one participant identity, one subscription to the
// outbound channel, and a response timeout. The timeout lives here
// and not in Central; the server never waits on a remote's behalf,
// so how long to wait for an answer is the caller's policy.
//
// Unsolicited responses, such as scheduled prompts, arrive on the
// same subscription and are surfaced through the Notify callback.
package remote
