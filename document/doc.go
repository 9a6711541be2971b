// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package document defines the typed messages that travel the internal
// bus between the router and its rooms.
//
// Document is a sealed sum over exactly three variants. A [Request]
// fans candidate capability packages out to the rooms that advertise
// them, a [Response] carries a room's action packages back (or an
// explicit no-response marker), and an [Announcement] is ticketless
// control traffic such as a shutdown notice or a session state change.
// Consumers dispatch with a type switch over the three variants; there
// is no reflective handler discovery.
//
// Documents never cross a process boundary. Cross-process traffic is
// the dialog protocol's job; documents may carry live pointers (the
// ticket, in-process payload objects) precisely because they stay
// in-process.
package document
