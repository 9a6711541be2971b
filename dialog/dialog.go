// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package dialog

import (
	"fmt"

	"github.com/atrium-foundation/atrium/lib/ref"
)

// Header is the first CBOR item of every dialog frame. It carries only
// the destination, so a receiver can discard foreign traffic without
// decoding the body.
type Header struct {
	To ref.ParticipantID `cbor:"to"`
}

// Dialog is the sealed union of wire message variants. The only
// implementations are [*Request] and [*Response].
type Dialog interface {
	// Sender returns the originating participant.
	Sender() ref.ParticipantID

	// Addressee returns the destination participant.
	Addressee() ref.ParticipantID

	// Valid reports whether the dialog satisfies its variant's
	// validity invariant, returning a descriptive error when not.
	Valid() error

	isDialog()
}

// Request is a participant-to-Central (or Central-to-participant)
// message asking for work. Capabilities lists what the sender
// explicitly wants; an empty-but-present list means "interpret the
// message text".
type Request struct {
	From     ref.ParticipantID `cbor:"from"`
	To       ref.ParticipantID `cbor:"to"`
	Language ref.Language      `cbor:"language"`

	// Capabilities must be present even when empty. A nil set means
	// the sender never considered capabilities at all, which is a
	// protocol violation.
	Capabilities []ref.CapabilityID `cbor:"capabilities"`

	// Message is optional free text.
	Message string `cbor:"message,omitempty"`

	// Payload is an optional structured body.
	Payload Payload `cbor:"-"`
}

func (r *Request) Sender() ref.ParticipantID    { return r.From }
func (r *Request) Addressee() ref.ParticipantID { return r.To }

// Valid implements the request validity invariant: from, to, language,
// and a present capability set, plus at least one of message, payload,
// or a non-empty capability set.
func (r *Request) Valid() error {
	if r.From.IsZero() {
		return fmt.Errorf("dialog: request has no sender")
	}
	if r.To.IsZero() {
		return fmt.Errorf("dialog: request has no addressee")
	}
	if r.Language.IsZero() {
		return fmt.Errorf("dialog: request has no language")
	}
	if r.Capabilities == nil {
		return fmt.Errorf("dialog: request has no capability set")
	}
	if r.Message == "" && r.Payload == nil && len(r.Capabilities) == 0 {
		return fmt.Errorf("dialog: request carries no message, payload, or capabilities")
	}
	return nil
}

func (r *Request) isDialog() {}

func (r *Request) String() string {
	return fmt.Sprintf("dialog request %s -> %s (%d capabilities)", r.From, r.To, len(r.Capabilities))
}

// Response is the answer traveling back. Capability names the
// capability that produced the answer, when one did.
type Response struct {
	From     ref.ParticipantID `cbor:"from"`
	To       ref.ParticipantID `cbor:"to"`
	Language ref.Language      `cbor:"language"`

	// Message is the client-facing answer text.
	Message string `cbor:"message,omitempty"`

	// Explanation is optional longer-form detail.
	Explanation string `cbor:"explanation,omitempty"`

	// Capability names the capability the answer came from, zero when
	// the response is pure payload (a login result, say).
	Capability ref.CapabilityID `cbor:"capability,omitempty"`

	// Payload is an optional structured body.
	Payload Payload `cbor:"-"`
}

func (r *Response) Sender() ref.ParticipantID    { return r.From }
func (r *Response) Addressee() ref.ParticipantID { return r.To }

// Valid implements the response validity invariant: from, to,
// language, plus at least one of message, payload, or capability.
func (r *Response) Valid() error {
	if r.From.IsZero() {
		return fmt.Errorf("dialog: response has no sender")
	}
	if r.To.IsZero() {
		return fmt.Errorf("dialog: response has no addressee")
	}
	if r.Language.IsZero() {
		return fmt.Errorf("dialog: response has no language")
	}
	if r.Message == "" && r.Payload == nil && r.Capability.IsZero() {
		return fmt.Errorf("dialog: response carries no message, payload, or capability")
	}
	return nil
}

func (r *Response) isDialog() {}

func (r *Response) String() string {
	return fmt.Sprintf("dialog response %s -> %s", r.From, r.To)
}
