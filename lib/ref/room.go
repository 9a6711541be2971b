// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// RoomID identifies a capability handler ("room") registered with the
// router. Room IDs are short lowercase names chosen at registration
// time ("controller", "echo", "weather"); they appear in log output,
// document routing, and the capability directory.
//
// RoomID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type RoomID struct {
	id string
}

// ParseRoomID validates and wraps a raw room ID string. Valid room IDs
// are 1-32 characters of [a-z0-9-], starting with a letter.
func ParseRoomID(raw string) (RoomID, error) {
	if raw == "" {
		return RoomID{}, fmt.Errorf("empty room ID")
	}
	if len(raw) > 32 {
		return RoomID{}, fmt.Errorf("room ID exceeds 32 characters: %q", raw)
	}
	if raw[0] < 'a' || raw[0] > 'z' {
		return RoomID{}, fmt.Errorf("room ID must start with a lowercase letter: %q", raw)
	}
	for _, c := range raw {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return RoomID{}, fmt.Errorf("room ID contains invalid character %q: %q", c, raw)
		}
	}
	return RoomID{id: raw}, nil
}

// MustParseRoomID is like ParseRoomID but panics on error. Use in
// tests and static initialization.
func MustParseRoomID(raw string) RoomID {
	r, err := ParseRoomID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseRoomID(%q): %v", raw, err))
	}
	return r
}

// String returns the raw room ID string.
func (r RoomID) String() string { return r.id }

// IsZero reports whether the RoomID is the zero value.
func (r RoomID) IsZero() bool { return r.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (r RoomID) MarshalText() ([]byte, error) {
	if r.id == "" {
		return nil, nil
	}
	return []byte(r.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RoomID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RoomID{}
		return nil
	}
	parsed, err := ParseRoomID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
