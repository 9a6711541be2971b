// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// broadcastID is the reserved participant identity meaning "deliver to
// all listeners". Every subscriber decodes broadcast-addressed frames.
const broadcastID = "all"

// ParticipantID identifies a remote endpoint in a dialog exchange: a
// console, an embedded station, or Atrium Central itself. The value is
// opaque — Central mints IDs from a broker counter, stations persist
// theirs across restarts — but the format is constrained so IDs can be
// embedded in broker keys and text-channel frames without escaping.
//
// ParticipantID is an immutable value type. The zero value is not
// valid; use IsZero to check.
type ParticipantID struct {
	id string
}

// Broadcast returns the reserved broadcast participant identity.
func Broadcast() ParticipantID {
	return ParticipantID{id: broadcastID}
}

// ParseParticipantID validates and wraps a raw participant ID string.
// Valid IDs are 1-64 characters of [A-Za-z0-9_.-]. Colons are rejected
// because participant IDs appear as segments in broker keys
// ("atrium:session:<id>") and as the prefix of "::"-framed text-channel
// payloads.
func ParseParticipantID(raw string) (ParticipantID, error) {
	if raw == "" {
		return ParticipantID{}, fmt.Errorf("empty participant ID")
	}
	if len(raw) > 64 {
		return ParticipantID{}, fmt.Errorf("participant ID exceeds 64 characters: %q", raw)
	}
	for _, c := range raw {
		if !isIdentChar(c) && c != '.' {
			return ParticipantID{}, fmt.Errorf("participant ID contains invalid character %q: %q", c, raw)
		}
	}
	return ParticipantID{id: raw}, nil
}

// MustParseParticipantID is like ParseParticipantID but panics on
// error. Use in tests and static initialization.
func MustParseParticipantID(raw string) ParticipantID {
	p, err := ParseParticipantID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseParticipantID(%q): %v", raw, err))
	}
	return p
}

// String returns the raw participant ID string.
func (p ParticipantID) String() string { return p.id }

// IsZero reports whether the ParticipantID is the zero value.
func (p ParticipantID) IsZero() bool { return p.id == "" }

// IsBroadcast reports whether this is the reserved broadcast identity.
func (p ParticipantID) IsBroadcast() bool { return p.id == broadcastID }

// MarshalText implements encoding.TextMarshaler.
func (p ParticipantID) MarshalText() ([]byte, error) {
	if p.id == "" {
		return nil, nil
	}
	return []byte(p.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset participant).
func (p *ParticipantID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = ParticipantID{}
		return nil
	}
	parsed, err := ParseParticipantID(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func isIdentChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	}
	return false
}
