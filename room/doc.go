// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package room defines the contract every capability handler
// implements and the bus that connects them.
//
// A [Service] is the pluggable part: it advertises capabilities,
// starts and stops, and handles the requests, responses, and
// announcements the bus delivers. A [Node] wraps one service with the
// machinery the contract promises: a per-room dispatch goroutine fed
// by a bounded queue (a slow room stalls only its own dispatch path),
// the response cabinet that collects every room's answer to a posted
// request, and the mechanical reply to the what-capabilities control
// broadcast.
//
// Every node sees every document posted to the [Bus]. A node acts on
// the request candidates whose capability its service advertises and
// answers everything else with an explicit no-response, so the asking
// room always knows when it has heard from everyone.
//
// Services move through Created, Starting, Running, Stopping, Stopped,
// in that order, driven only by their node.
package room
