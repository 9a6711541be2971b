// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// CapabilityID names a sememe: one globally unique unit of advertised
// functionality ("what_capabilities", "spell_word", "weather_forecast").
// Rooms advertise sets of capability IDs at startup and the router
// builds its dispatch directory from them. The global catalog of
// defined capabilities lives in the catalog package; this type only
// enforces the name format.
//
// CapabilityID is an immutable value type. The zero value is not
// valid; use IsZero to check.
type CapabilityID struct {
	id string
}

// ParseCapabilityID validates and wraps a raw capability name. Valid
// names are 1-64 characters of [a-z0-9_], starting with a letter.
// Underscores separate words, matching the catalog's naming scheme.
func ParseCapabilityID(raw string) (CapabilityID, error) {
	if raw == "" {
		return CapabilityID{}, fmt.Errorf("empty capability ID")
	}
	if len(raw) > 64 {
		return CapabilityID{}, fmt.Errorf("capability ID exceeds 64 characters: %q", raw)
	}
	if raw[0] < 'a' || raw[0] > 'z' {
		return CapabilityID{}, fmt.Errorf("capability ID must start with a lowercase letter: %q", raw)
	}
	for _, c := range raw {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return CapabilityID{}, fmt.Errorf("capability ID contains invalid character %q: %q", c, raw)
		}
	}
	return CapabilityID{id: raw}, nil
}

// MustParseCapabilityID is like ParseCapabilityID but panics on error.
// Use in tests and static initialization.
func MustParseCapabilityID(raw string) CapabilityID {
	c, err := ParseCapabilityID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseCapabilityID(%q): %v", raw, err))
	}
	return c
}

// String returns the raw capability name.
func (c CapabilityID) String() string { return c.id }

// IsZero reports whether the CapabilityID is the zero value.
func (c CapabilityID) IsZero() bool { return c.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (c CapabilityID) MarshalText() ([]byte, error) {
	if c.id == "" {
		return nil, nil
	}
	return []byte(c.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CapabilityID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = CapabilityID{}
		return nil
	}
	parsed, err := ParseCapabilityID(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
