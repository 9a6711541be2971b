// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"fmt"

	"github.com/atrium-foundation/atrium/lib/ref"
)

// CapabilityPackage is one candidate interpretation of client input:
// a capability that might satisfy it, a confidence score from the
// interpreter that proposed it, and the sentence fragment it was
// derived from. The router fans candidates out to the rooms that
// advertise the capability.
type CapabilityPackage struct {
	// ID is unique across the deployment, minted from the candidate
	// counter. Action packages reference their candidate by this ID.
	ID int64

	// Capability names the unit of functionality being proposed.
	Capability ref.CapabilityID

	// Confidence is the proposing interpreter's score, 0-100. A
	// package injected directly by a client (an explicit capability
	// in the dialog request) carries 100.
	Confidence int

	// SentenceFragment is the piece of input this candidate was
	// derived from. Empty for explicit client capabilities.
	SentenceFragment string

	// Object is an optional typed argument for the handler (a parsed
	// timer duration, a city ID). In-process only; never serialized.
	Object any
}

// NewCapabilityPackage builds a candidate with full confidence, the
// form used for explicit client capabilities and internal control
// traffic like the what-capabilities query.
func NewCapabilityPackage(id int64, capability ref.CapabilityID) *CapabilityPackage {
	return &CapabilityPackage{
		ID:         id,
		Capability: capability,
		Confidence: 100,
	}
}

func (p *CapabilityPackage) String() string {
	return fmt.Sprintf("candidate %d (%s, confidence %d)", p.ID, p.Capability, p.Confidence)
}

// ActionPackage is the result a room produced for one candidate.
type ActionPackage struct {
	// Capability echoes the candidate's capability.
	Capability ref.CapabilityID

	// CandidateID references the CapabilityPackage this action
	// answers. The journal enforces that the candidate exists.
	CandidateID int64

	// From is the room that produced the action.
	From ref.RoomID

	// Message is the client-facing result text, if any.
	Message string

	// Explanation is optional longer-form detail accompanying the
	// message.
	Explanation string

	// Result is an optional typed result object (a media cache key,
	// a weather report). In-process only; never serialized.
	Result any
}

// NewActionPackage builds an action answering the given candidate.
func NewActionPackage(candidate *CapabilityPackage, from ref.RoomID) *ActionPackage {
	return &ActionPackage{
		Capability:  candidate.Capability,
		CandidateID: candidate.ID,
		From:        from,
	}
}

func (a *ActionPackage) String() string {
	return fmt.Sprintf("action for candidate %d (%s) from %s", a.CandidateID, a.Capability, a.From)
}

// FindAction returns the first action in actions for the given
// capability, or nil if none. Rooms use this to pick their own answer
// out of a collected response set.
func FindAction(capability ref.CapabilityID, actions []*ActionPackage) *ActionPackage {
	for _, action := range actions {
		if action.Capability == capability {
			return action
		}
	}
	return nil
}
