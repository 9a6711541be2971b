// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"fmt"
	"sort"
	"sync"

	"github.com/atrium-foundation/atrium/lib/ref"
)

// IntegrityType classifies a directory consistency violation.
type IntegrityType int

const (
	// TypeIUnknownCapability marks a capability some room advertises
	// that the catalog has never heard of.
	TypeIUnknownCapability IntegrityType = iota + 1

	// TypeIIUnclaimedCapability marks a catalog capability no running
	// room claims.
	TypeIIUnclaimedCapability
)

func (t IntegrityType) String() string {
	switch t {
	case TypeIUnknownCapability:
		return "unknown capability"
	case TypeIIUnclaimedCapability:
		return "unclaimed capability"
	}
	return "invalid"
}

// IntegrityError is one reported consistency violation. These never
// abort the process; the router runs degraded and says so.
type IntegrityError struct {
	Type       IntegrityType
	Capability ref.CapabilityID

	// Rooms are the advertisers, for Type I errors.
	Rooms []ref.RoomID
}

func (e *IntegrityError) Error() string {
	switch e.Type {
	case TypeIUnknownCapability:
		return fmt.Sprintf("capability %s advertised by %v is not in the catalog", e.Capability, e.Rooms)
	case TypeIIUnclaimedCapability:
		return fmt.Sprintf("catalog capability %s is claimed by no room", e.Capability)
	}
	return "invalid integrity error"
}

// directory is the capability to rooms multimap. Written once during
// collection, read-only afterward.
type directory struct {
	mu      sync.RWMutex
	entries map[ref.CapabilityID][]ref.RoomID
}

func newDirectory() *directory {
	return &directory{entries: make(map[ref.CapabilityID][]ref.RoomID)}
}

func (d *directory) replace(entries map[ref.CapabilityID][]ref.RoomID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = entries
}

func (d *directory) lookup(capability ref.CapabilityID) []ref.RoomID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]ref.RoomID(nil), d.entries[capability]...)
}

func (d *directory) capabilities() []ref.CapabilityID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	capabilities := make([]ref.CapabilityID, 0, len(d.entries))
	for capability := range d.entries {
		capabilities = append(capabilities, capability)
	}
	sort.Slice(capabilities, func(i, j int) bool {
		return capabilities[i].String() < capabilities[j].String()
	})
	return capabilities
}
