// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"errors"
	"fmt"
)

// ErrCRCMismatch is matched by every CRCError via errors.Is
var ErrCRCMismatch = errors.New("crc mismatch")

// ValidationError reports a command parameter outside its domain.
// No frame is produced when a builder returns one.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// DecodeError reports a frame that could not be interpreted
type DecodeError struct {
	Length   int
	Function uint8
	Message  string
}

func (e *DecodeError) Error() string {
	if e.Function != 0 {
		return fmt.Sprintf("decode error (len=%d func=0x%02X): %s", e.Length, e.Function, e.Message)
	}
	return fmt.Sprintf("decode error (len=%d): %s", e.Length, e.Message)
}

// CRCError carries both checksums of a rejected frame
type CRCError struct {
	Expected uint16
	Received uint16
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", e.Expected, e.Received)
}

// Is reports whether target is ErrCRCMismatch
func (e *CRCError) Is(target error) bool {
	return target == ErrCRCMismatch
}
