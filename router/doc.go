// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package router supervises the set of rooms and owns the capability
// directory.
//
// Startup is all-or-nothing: every registered room is started as a
// group and one failure aborts the run. Once all rooms report healthy
// the router's controller room broadcasts the what-capabilities
// request, collects every room's advertisement into the directory,
// and checks the result against the capability catalog. A directory
// capability the catalog does not know is an integrity error; a
// catalog capability no room claims is a coverage error. Both are
// reported and the process keeps running degraded.
//
// After collection the directory is read-only. RouteRequest is a
// lookup: the rooms advertising a candidate's capability, possibly
// none, which callers treat as "no handler available" rather than an
// error.
//
// Shutdown mirrors startup: a shutdown announcement, then every room
// is stopped with a bounded wait.
package router
