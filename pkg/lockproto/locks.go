// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"encoding/binary"
	"strings"
)

// LockStates holds the open flag of every lock; index 0 is lock 1
type LockStates [LockCount]bool

// Open returns the 1-based numbers of every open lock
func (l LockStates) Open() []int {
	open := make([]int, 0, LockCount)
	for i, v := range l {
		if v {
			open = append(open, i+1)
		}
	}
	return open
}

// String renders the bank as a row of 1 (open) and 0 (closed)
func (l LockStates) String() string {
	var sb strings.Builder
	for _, v := range l {
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// EncodeOpenMask builds the 16-bit mask for an open command from 1-based
// lock numbers. Only locks 1 through 10 can be encoded; anything else is
// dropped without error.
func EncodeOpenMask(locks []int) uint16 {
	var mask uint16
	for _, n := range locks {
		pos := n - 1
		if pos < 0 || pos >= OpenableLocks {
			continue
		}
		mask |= 1 << uint(pos)
	}
	return mask
}

// maskBytes returns the mask in the byte order the appliance expects:
// natural order, then swapped.
func maskBytes(mask uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, mask)
	return b
}

// maskFromBytes undoes the device's swapped transmission order
func maskFromBytes(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// DecodeLockMask expands a received mask into the twelve lock flags
func DecodeLockMask(mask uint16) LockStates {
	var states LockStates
	for i := 0; i < LockCount; i++ {
		states[i] = mask&(1<<uint(i)) != 0
	}
	return states
}

// EncodeLockMask is the inverse of DecodeLockMask covering all twelve locks.
// It is used for status frames, not for open commands.
func EncodeLockMask(states LockStates) uint16 {
	var mask uint16
	for i, v := range states {
		if v {
			mask |= 1 << uint(i)
		}
	}
	return mask
}
