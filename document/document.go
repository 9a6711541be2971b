// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"fmt"
	"slices"

	"github.com/atrium-foundation/atrium/lib/ref"
	"github.com/atrium-foundation/atrium/ticket"
)

// WhatCapabilities is the control capability the router broadcasts at
// startup to collect every room's advertisements. Rooms answer it
// mechanically; it never reaches a room's request handler.
var WhatCapabilities = ref.MustParseCapabilityID("what_capabilities")

// Document is the sealed union of bus message variants. The only
// implementations are [*Request], [*Response], and [*Announcement];
// consumers switch exhaustively over those three.
type Document interface {
	// DocumentID returns the bus-wide document ID, minted from the
	// document counter.
	DocumentID() int64

	// Valid reports whether the document satisfies its variant's
	// structural invariants, returning a descriptive error when not.
	Valid() error

	isDocument()
}

// Request fans one unit of ticket work out to rooms. Every request
// belongs to exactly one open ticket.
type Request struct {
	// ID is the bus-wide document ID.
	ID int64

	// Ticket is the unit of work this request serves.
	Ticket *ticket.Ticket

	// From is the room that posted the request.
	From ref.RoomID

	// To targets specific rooms, usually from a directory lookup.
	// Empty means every room; each then acts only on the candidates
	// whose capability it advertises.
	To []ref.RoomID

	// Candidates are the capability packages to dispatch.
	Candidates []*ticket.CapabilityPackage

	// Message is optional free text accompanying the candidates.
	Message string

	// Object is an optional in-process payload.
	Object any
}

func (r *Request) DocumentID() int64 { return r.ID }

func (r *Request) Valid() error {
	if r.ID == 0 {
		return fmt.Errorf("document: request has no document ID")
	}
	if r.Ticket == nil {
		return fmt.Errorf("document: request %d has no ticket", r.ID)
	}
	if r.From.IsZero() {
		return fmt.Errorf("document: request %d has no originating room", r.ID)
	}
	if len(r.Candidates) == 0 && r.Message == "" && r.Object == nil {
		return fmt.Errorf("document: request %d carries no candidates, message, or payload", r.ID)
	}
	for i, candidate := range r.Candidates {
		if candidate == nil {
			return fmt.Errorf("document: request %d has nil candidate at index %d", r.ID, i)
		}
		if candidate.Capability.IsZero() {
			return fmt.Errorf("document: request %d candidate %d has no capability", r.ID, candidate.ID)
		}
	}
	return nil
}

func (r *Request) isDocument() {}

func (r *Request) String() string {
	return fmt.Sprintf("request %d (%s, %d candidates)", r.ID, r.Ticket, len(r.Candidates))
}

// Targeted reports whether the request is aimed at the given room.
// Untargeted requests are aimed at everyone.
func (r *Request) Targeted(room ref.RoomID) bool {
	if len(r.To) == 0 {
		return true
	}
	return slices.Contains(r.To, room)
}

// HasCapability reports whether any candidate names the given
// capability.
func (r *Request) HasCapability(capability ref.CapabilityID) bool {
	return r.Candidate(capability) != nil
}

// Candidate returns the first candidate naming the given capability,
// or nil.
func (r *Request) Candidate(capability ref.CapabilityID) *ticket.CapabilityPackage {
	for _, candidate := range r.Candidates {
		if candidate.Capability == capability {
			return candidate
		}
	}
	return nil
}

// Response is a room's answer to one request. A room that has nothing
// to say still responds, with NoResponse set, so the collector can
// tell "declined" from "not yet heard from".
type Response struct {
	// ID is the bus-wide document ID.
	ID int64

	// Ticket is the ticket of the request being answered.
	Ticket *ticket.Ticket

	// From is the responding room.
	From ref.RoomID

	// RespondTo is the room that posted the request being answered.
	RespondTo ref.RoomID

	// ResponseTo is the document ID of the request being answered.
	ResponseTo int64

	// Actions are the results produced, one per candidate acted on.
	// Empty when NoResponse is set.
	Actions []*ticket.ActionPackage

	// NoResponse marks an explicit decline.
	NoResponse bool
}

func (r *Response) DocumentID() int64 { return r.ID }

func (r *Response) Valid() error {
	if r.ID == 0 {
		return fmt.Errorf("document: response has no document ID")
	}
	if r.Ticket == nil {
		return fmt.Errorf("document: response %d has no ticket", r.ID)
	}
	if r.From.IsZero() {
		return fmt.Errorf("document: response %d has no responding room", r.ID)
	}
	if r.ResponseTo == 0 {
		return fmt.Errorf("document: response %d does not reference a request", r.ID)
	}
	if r.NoResponse {
		if len(r.Actions) > 0 {
			return fmt.Errorf("document: response %d is marked no-response but carries %d actions",
				r.ID, len(r.Actions))
		}
		return nil
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("document: response %d carries no actions and is not marked no-response", r.ID)
	}
	return nil
}

func (r *Response) isDocument() {}

func (r *Response) String() string {
	if r.NoResponse {
		return fmt.Sprintf("response %d to %d (%s, no response)", r.ID, r.ResponseTo, r.From)
	}
	return fmt.Sprintf("response %d to %d (%s, %d actions)", r.ID, r.ResponseTo, r.From, len(r.Actions))
}

// AnnouncementKind tags ticketless control traffic.
type AnnouncementKind string

const (
	// ServerStartup is broadcast once the router's directory is built
	// and the node is accepting work.
	ServerStartup AnnouncementKind = "server_startup"

	// ServerShutdown is broadcast before the supervisor begins
	// stopping rooms. Rooms finish in-flight work and decline new.
	ServerShutdown AnnouncementKind = "server_shutdown"

	// SessionLogin reports that a participant's session gained a
	// logged-in person.
	SessionLogin AnnouncementKind = "session_login"

	// SessionLogout reports that a participant's session dropped its
	// person.
	SessionLogout AnnouncementKind = "session_logout"
)

func (k AnnouncementKind) valid() bool {
	switch k {
	case ServerStartup, ServerShutdown, SessionLogin, SessionLogout:
		return true
	}
	return false
}

// Announcement is ticketless control traffic fanned out to every room.
type Announcement struct {
	// ID is the bus-wide document ID.
	ID int64

	// From is the room that posted the announcement.
	From ref.RoomID

	// Kind tags what happened.
	Kind AnnouncementKind

	// Participant is set for session state changes, zero otherwise.
	Participant ref.ParticipantID
}

func (a *Announcement) DocumentID() int64 { return a.ID }

func (a *Announcement) Valid() error {
	if a.ID == 0 {
		return fmt.Errorf("document: announcement has no document ID")
	}
	if a.From.IsZero() {
		return fmt.Errorf("document: announcement %d has no originating room", a.ID)
	}
	if !a.Kind.valid() {
		return fmt.Errorf("document: announcement %d has unknown kind %q", a.ID, a.Kind)
	}
	switch a.Kind {
	case SessionLogin, SessionLogout:
		if a.Participant.IsZero() {
			return fmt.Errorf("document: %s announcement %d names no participant", a.Kind, a.ID)
		}
	default:
		if !a.Participant.IsZero() {
			return fmt.Errorf("document: %s announcement %d must not name a participant", a.Kind, a.ID)
		}
	}
	return nil
}

func (a *Announcement) isDocument() {}

func (a *Announcement) String() string {
	return fmt.Sprintf("announcement %d (%s from %s)", a.ID, a.Kind, a.From)
}
