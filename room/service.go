// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"context"

	"github.com/atrium-foundation/atrium/document"
	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/ticket"
)

// Service is the contract a capability handler implements. The node
// calls every method from its single dispatch goroutine, so a service
// needs no internal locking against its own callbacks; it must still
// be safe for concurrent work it spawns across different tickets.
type Service interface {
	// Identity returns the room's stable identity.
	Identity() ref.RoomID

	// AdvertisedCapabilities returns the capabilities this room
	// handles. Read once at startup; the set must not change while
	// the room is running.
	AdvertisedCapabilities() []ref.CapabilityID

	// Startup transitions the service to operational. Called once,
	// before any dispatch. A startup error is fatal to the whole
	// process.
	Startup(ctx context.Context) error

	// Shutdown releases the service's resources. Called once, after
	// dispatch has stopped.
	Shutdown(ctx context.Context) error

	// HandleRequest produces the action for one candidate the room
	// advertises. Long work belongs on the service's own workers; the
	// dispatch goroutine is shared with every other document bound
	// for this room. Returning an error (or a nil action) means the
	// room has no answer for this candidate.
	HandleRequest(ctx context.Context, pkg *ticket.CapabilityPackage, request *document.Request) (*ticket.ActionPackage, error)

	// HandleResponses delivers the complete response set for a
	// request this room posted, once every other room has answered.
	HandleResponses(ctx context.Context, request *document.Request, responses []*document.Response)

	// HandleAnnouncement delivers ticketless control traffic.
	HandleAnnouncement(ctx context.Context, announcement *document.Announcement)
}

// State is a service's lifecycle position. Transitions are strictly
// forward.
type State int32

const (
	Created State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}
