// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticket provides the correlation object for one unit of
// client work and the journal of everything produced while it was
// open.
//
// A Ticket is opened when a dialog request enters Central and closed
// exactly once, by the component that owns completion (the router).
// Between those two events every intermediate artifact — context
// lines, parsed sentence fragments, candidate capability packages,
// and the action packages produced by rooms — is appended to the
// ticket's Journal in arrival order. The journal is owned exclusively
// by its ticket and shares its lifetime.
//
// Referential integrity is enforced, not assumed: an action package
// may only be recorded against a candidate that is already in the
// journal. A dangling reference means something is wrong upstream and
// fails loudly with [*DanglingReferenceError] rather than silently
// creating an orphan action.
//
// Closing is terminal. Any mutation after Close fails with
// [ErrTicketClosed]; errors on one ticket never affect another.
package ticket
