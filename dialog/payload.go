// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package dialog

import (
	"fmt"

	"github.com/google/uuid"
)

// PayloadKind tags the structured body variants on the wire.
type PayloadKind string

const (
	KindLogin         PayloadKind = "login"
	KindLoginResponse PayloadKind = "login_response"
	KindMedia         PayloadKind = "media"
	KindObject        PayloadKind = "object"
)

// Payload is the sealed union of structured dialog bodies.
type Payload interface {
	Kind() PayloadKind
	isPayload()
}

// LoginPayload asks Central to attach a person to the sender's
// session. A login with empty credentials is a logout.
type LoginPayload struct {
	UserName string `cbor:"username"`
	Password string `cbor:"password"`
}

func (p *LoginPayload) Kind() PayloadKind { return KindLogin }
func (p *LoginPayload) isPayload()        {}

// IsLogout reports whether this login payload is a logout request.
func (p *LoginPayload) IsLogout() bool {
	return p.UserName == "" && p.Password == ""
}

// LoginResponsePayload reports the outcome of a login or logout. A
// nil person UUID means the attempt failed or the session is now
// anonymous.
type LoginResponsePayload struct {
	Person   uuid.UUID `cbor:"person"`
	UserName string    `cbor:"username,omitempty"`
	Message  string    `cbor:"message"`
}

func (p *LoginResponsePayload) Kind() PayloadKind { return KindLoginResponse }
func (p *LoginResponsePayload) isPayload()        {}

// LoggedIn reports whether the response represents an authenticated
// session.
func (p *LoginResponsePayload) LoggedIn() bool {
	return p.Person != uuid.Nil
}

// MediaPayload points a client at a cached media entry. The key
// addresses a short-lived media cache record on Central; clients fetch
// it promptly or not at all.
type MediaPayload struct {
	Format string `cbor:"format"`
	Key    int64  `cbor:"key"`
}

func (p *MediaPayload) Kind() PayloadKind { return KindMedia }
func (p *MediaPayload) isPayload()        {}

// ObjectPayload carries an arbitrary structured body for exchanges the
// protocol has no dedicated payload for. Fields survive a round trip
// as map[string]any.
type ObjectPayload struct {
	Fields map[string]any `cbor:"fields"`
}

func (p *ObjectPayload) Kind() PayloadKind { return KindObject }
func (p *ObjectPayload) isPayload()        {}

func newPayload(kind PayloadKind) (Payload, error) {
	switch kind {
	case KindLogin:
		return &LoginPayload{}, nil
	case KindLoginResponse:
		return &LoginResponsePayload{}, nil
	case KindMedia:
		return &MediaPayload{}, nil
	case KindObject:
		return &ObjectPayload{}, nil
	}
	return nil, fmt.Errorf("unknown payload kind %q", kind)
}
