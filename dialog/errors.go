// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package dialog

import (
	"errors"
	"fmt"
)

// ValidationError reports a dialog that failed its validity invariant
// before encoding. The message never reached the wire.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dialog validation failed: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// CapacityError reports an encoded dialog exceeding the transport's
// hard message ceiling. This is backpressure to the caller; the
// message is never fragmented or truncated.
type CapacityError struct {
	Size  int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("encoded dialog is %d bytes, over the %d byte ceiling", e.Size, e.Limit)
}

// IsCapacity reports whether err is a *CapacityError.
func IsCapacity(err error) bool {
	var capacity *CapacityError
	return errors.As(err, &capacity)
}

// MalformedMessageError reports a structural decode failure on inbound
// bytes. Non-fatal to the receiver; subscriber loops log and drop.
type MalformedMessageError struct {
	// Stage is what was being decoded: "header", "frame", or
	// "payload".
	Stage  string
	Reason error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed dialog %s: %v", e.Stage, e.Reason)
}

func (e *MalformedMessageError) Unwrap() error { return e.Reason }

// IsMalformed reports whether err is a *MalformedMessageError.
func IsMalformed(err error) bool {
	var malformed *MalformedMessageError
	return errors.As(err, &malformed)
}
