// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"net"
	"time"
)

// Pipe returns two connected in-memory channels. Bytes written to one are
// read from the other. Used to run the controller against the simulator.
func Pipe(readTimeout time.Duration) (Channel, Channel) {
	a, b := net.Pipe()
	return NewStreamChannel(a, readTimeout), NewStreamChannel(b, readTimeout)
}
