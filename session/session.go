// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atrium-foundation/atrium/broker"
	"github.com/atrium-foundation/atrium/lib/ref"
)

// Kind says how a participant exchanges traffic with Central.
type Kind string

const (
	// Serialized sessions exchange full dialog objects on the byte
	// channels.
	Serialized Kind = "serialized"

	// Text sessions are lightweight consoles on the text channels.
	Text Kind = "text"
)

// ParseKind validates a raw session kind.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case Serialized, Text:
		return Kind(raw), nil
	}
	return "", fmt.Errorf("session: unknown session kind %q", raw)
}

// Session is one participant's state. The zero person UUID means not
// logged in.
type Session struct {
	Participant ref.ParticipantID
	Person      uuid.UUID
	Station     uuid.UUID
	Language    ref.Language
	Kind        Kind
	Quiet       bool
	Timestamp   time.Time
}

// New returns a fresh anonymous session for a first contact.
func New(participant ref.ParticipantID, station uuid.UUID, kind Kind) *Session {
	return &Session{
		Participant: participant,
		Station:     station,
		Language:    ref.DefaultLanguage,
		Kind:        kind,
		Timestamp:   time.Now().UTC(),
	}
}

// LoggedIn reports whether a person is attached.
func (s *Session) LoggedIn() bool {
	return s.Person != uuid.Nil
}

// Touch updates the last-contact timestamp.
func (s *Session) Touch() {
	s.Timestamp = time.Now().UTC()
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s, %s)", s.Participant, s.Kind, s.Language)
}

// Hash field names. Shared wire format; other processes read these.
const (
	fieldPerson    = "person"
	fieldStation   = "station"
	fieldLanguage  = "language"
	fieldKind      = "kind"
	fieldQuiet     = "quiet"
	fieldTimestamp = "timestamp"
)

// Manager reads and writes sessions on the Central pool.
type Manager struct {
	central *broker.Pool
}

// NewManager binds the manager to the Central pool.
func NewManager(central *broker.Pool) *Manager {
	return &Manager{central: central}
}

// Lookup fetches a participant's session. The second return is false
// when the participant has never made contact.
func (m *Manager) Lookup(ctx context.Context, participant ref.ParticipantID) (*Session, bool, error) {
	fields, err := m.central.HashGetAll(ctx, broker.SessionHashKey(participant))
	if err != nil {
		return nil, false, fmt.Errorf("session: loading %s: %w", participant, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	s := &Session{Participant: participant}
	if raw, ok := fields[fieldPerson]; ok && len(raw) > 0 {
		s.Person, err = uuid.ParseBytes(raw)
		if err != nil {
			return nil, false, fmt.Errorf("session: %s has bad person field: %w", participant, err)
		}
	}
	if raw, ok := fields[fieldStation]; ok && len(raw) > 0 {
		s.Station, err = uuid.ParseBytes(raw)
		if err != nil {
			return nil, false, fmt.Errorf("session: %s has bad station field: %w", participant, err)
		}
	}
	if raw, ok := fields[fieldLanguage]; ok {
		s.Language, err = ref.ParseLanguage(string(raw))
		if err != nil {
			return nil, false, fmt.Errorf("session: %s has bad language field: %w", participant, err)
		}
	}
	if raw, ok := fields[fieldKind]; ok {
		s.Kind, err = ParseKind(string(raw))
		if err != nil {
			return nil, false, fmt.Errorf("session: %s: %w", participant, err)
		}
	}
	s.Quiet = string(fields[fieldQuiet]) == "true"
	if raw, ok := fields[fieldTimestamp]; ok {
		s.Timestamp, err = time.Parse(time.RFC3339Nano, string(raw))
		if err != nil {
			return nil, false, fmt.Errorf("session: %s has bad timestamp field: %w", participant, err)
		}
	}
	return s, true, nil
}

// Store writes the session whole, replacing whatever was there.
func (m *Manager) Store(ctx context.Context, s *Session) error {
	if s.Participant.IsZero() {
		return fmt.Errorf("session: storing session with zero participant")
	}
	fields := map[string][]byte{
		fieldLanguage:  []byte(s.Language.String()),
		fieldKind:      []byte(s.Kind),
		fieldQuiet:     []byte(fmt.Sprintf("%t", s.Quiet)),
		fieldTimestamp: []byte(s.Timestamp.UTC().Format(time.RFC3339Nano)),
	}
	if s.Person != uuid.Nil {
		fields[fieldPerson] = []byte(s.Person.String())
	} else {
		fields[fieldPerson] = nil
	}
	if s.Station != uuid.Nil {
		fields[fieldStation] = []byte(s.Station.String())
	} else {
		fields[fieldStation] = nil
	}
	if err := m.central.HashSet(ctx, broker.SessionHashKey(s.Participant), fields); err != nil {
		return fmt.Errorf("session: storing %s: %w", s.Participant, err)
	}
	return nil
}

// Login attaches a person to the participant's session and stores it.
func (m *Manager) Login(ctx context.Context, participant ref.ParticipantID, person uuid.UUID) error {
	s, ok, err := m.Lookup(ctx, participant)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session: login for unknown participant %s", participant)
	}
	s.Person = person
	s.Touch()
	return m.Store(ctx, s)
}

// Logout clears the person from the participant's session. Logging out
// a session that was never logged in is not an error.
func (m *Manager) Logout(ctx context.Context, participant ref.ParticipantID) error {
	s, ok, err := m.Lookup(ctx, participant)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.Person = uuid.Nil
	s.Touch()
	return m.Store(ctx, s)
}
