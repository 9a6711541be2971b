// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"errors"
	"fmt"

	"github.com/atrium-foundation/atrium/lib/ref"
)

// UnknownCapabilityError reports a request candidate dispatched to a
// room that never advertised its capability. This is a programming
// error in routing, not a recoverable condition; the request is
// aborted with a labeled internal error, never silently ignored.
type UnknownCapabilityError struct {
	Room       ref.RoomID
	Capability ref.CapabilityID
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("room %s invoked for unadvertised capability %s", e.Room, e.Capability)
}

// IsUnknownCapability reports whether err is an
// *UnknownCapabilityError.
func IsUnknownCapability(err error) bool {
	var unknown *UnknownCapabilityError
	return errors.As(err, &unknown)
}
