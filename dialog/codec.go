// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package dialog

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/lib/codec"
	"github.com/atrium-foundation/atrium/lib/ref"
)

const (
	kindRequest  = "request"
	kindResponse = "response"
)

// frame is the second CBOR item of a dialog message. The body is kept
// raw until the kind has been read, and the payload until the body's
// kind is known.
type frame struct {
	Kind        string           `cbor:"kind"`
	Body        codec.RawMessage `cbor:"body"`
	PayloadKind PayloadKind      `cbor:"payload_kind,omitempty"`
	Payload     codec.RawMessage `cbor:"payload,omitempty"`
}

// Codec encodes and decodes dialog messages for the byte channels.
//
// Debug mode additionally decodes the bodies of foreign traffic and
// logs them in diagnostic notation. Decode still returns nothing for
// foreign traffic; debug changes what is logged, never what is
// delivered.
type Codec struct {
	Debug bool

	logger *slog.Logger
}

// NewCodec returns a production-mode codec.
func NewCodec(logger *slog.Logger) *Codec {
	return &Codec{logger: logger.With("component", "dialog-codec")}
}

// Encode serializes (header, dialog) as a two-item CBOR sequence.
//
// The dialog must satisfy its validity invariant and the header must
// agree with the dialog's addressee; violations fail with
// [*ValidationError]. An encoded size over [broker.MaxMessageSize]
// fails with [*CapacityError] and nothing is written anywhere.
func (c *Codec) Encode(header Header, d Dialog) ([]byte, error) {
	if err := d.Valid(); err != nil {
		return nil, &ValidationError{Reason: err}
	}
	if header.To.IsZero() {
		return nil, &ValidationError{Reason: fmt.Errorf("dialog: header has no addressee")}
	}
	if header.To != d.Addressee() {
		return nil, &ValidationError{Reason: fmt.Errorf(
			"dialog: header addressed to %s but dialog addressed to %s", header.To, d.Addressee())}
	}

	f := frame{}
	var payload Payload
	switch d := d.(type) {
	case *Request:
		f.Kind = kindRequest
		payload = d.Payload
	case *Response:
		f.Kind = kindResponse
		payload = d.Payload
	}
	body, err := codec.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("dialog: encoding body: %w", err)
	}
	f.Body = body
	if payload != nil {
		raw, err := codec.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("dialog: encoding payload: %w", err)
		}
		f.PayloadKind = payload.Kind()
		f.Payload = raw
	}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("dialog: encoding header: %w", err)
	}
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("dialog: encoding frame: %w", err)
	}

	if buf.Len() > broker.MaxMessageSize {
		return nil, &CapacityError{Size: buf.Len(), Limit: broker.MaxMessageSize}
	}
	if buf.Len() > broker.SoftMessageLimit {
		c.logger.Warn("encoded dialog exceeds soft message limit",
			"size", buf.Len(),
			"soft_limit", broker.SoftMessageLimit,
			"to", header.To)
	}
	return buf.Bytes(), nil
}

// Decode reads a dialog frame addressed to selfID.
//
// Traffic addressed to neither selfID nor the broadcast address
// returns (nil, nil); the body is not decoded into application types
// outside debug mode. Structural failures return a
// [*MalformedMessageError]; callers log and drop, never crash.
func (c *Codec) Decode(selfID ref.ParticipantID, data []byte) (Dialog, error) {
	dec := codec.NewDecoder(bytes.NewReader(data))

	var header Header
	if err := dec.Decode(&header); err != nil {
		return nil, &MalformedMessageError{Stage: "header", Reason: err}
	}

	if !header.To.IsBroadcast() && header.To != selfID {
		if c.Debug {
			c.diagnoseForeign(header, data)
		}
		return nil, nil
	}

	var f frame
	if err := dec.Decode(&f); err != nil {
		return nil, &MalformedMessageError{Stage: "frame", Reason: err}
	}

	var d Dialog
	switch f.Kind {
	case kindRequest:
		d = &Request{}
	case kindResponse:
		d = &Response{}
	default:
		return nil, &MalformedMessageError{Stage: "frame",
			Reason: fmt.Errorf("unknown dialog kind %q", f.Kind)}
	}
	if err := codec.Unmarshal(f.Body, d); err != nil {
		return nil, &MalformedMessageError{Stage: "frame", Reason: err}
	}

	if f.PayloadKind != "" {
		payload, err := newPayload(f.PayloadKind)
		if err != nil {
			return nil, &MalformedMessageError{Stage: "payload", Reason: err}
		}
		if err := codec.Unmarshal(f.Payload, payload); err != nil {
			return nil, &MalformedMessageError{Stage: "payload", Reason: err}
		}
		switch d := d.(type) {
		case *Request:
			d.Payload = payload
		case *Response:
			d.Payload = payload
		}
	}
	return d, nil
}

// diagnoseForeign logs the body of traffic addressed elsewhere. Debug
// mode only; the decoded form is never handed to the application.
func (c *Codec) diagnoseForeign(header Header, data []byte) {
	_, rest, err := codec.DiagnoseFirst(data)
	if err != nil {
		return
	}
	diag, _, err := codec.DiagnoseFirst(rest)
	if err != nil {
		c.logger.Debug("foreign dialog with undiagnosable body", "to", header.To, "error", err)
		return
	}
	c.logger.Debug("foreign dialog", "to", header.To, "body", diag)
}
