// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"fmt"
	"sync"
)

// Frame is one decoded protocol frame, header through trailer
type Frame struct {
	Length   uint8
	Sequence uint8
	Address  uint8
	Function uint8
	Payload  []byte
	CRC      uint16
}

// Size returns the number of bytes the frame occupies on the wire
func (f *Frame) Size() int {
	return FrameOverhead + len(f.Payload)
}

// Encode serializes the frame, computing a fresh CRC
func (f *Frame) Encode() []byte {
	return BuildFrame(f.Length, f.Sequence, f.Address, f.Function, f.Payload)
}

// BuildFrame assembles the exact byte sequence to write to the channel
func BuildFrame(length, seq, address, function uint8, payload []byte) []byte {
	buf := make([]byte, 0, FrameOverhead+len(payload))
	buf = append(buf, HeaderByte0, HeaderByte1, length, seq, address, function)
	buf = append(buf, payload...)
	buf = appendCRC(buf, CalculateCRC(buf[offsetLength:]))
	buf = append(buf, TrailerByte0, TrailerByte1)
	return buf
}

// DecodeFrame splits a complete buffer into its fields. It checks the
// framing markers but not the CRC; see VerifyCRC.
func DecodeFrame(buf []byte) (*Frame, error) {
	n := len(buf)
	if n < FrameOverhead {
		return nil, &DecodeError{Length: n, Message: "frame shorter than fixed overhead"}
	}
	if buf[0] != HeaderByte0 || buf[1] != HeaderByte1 {
		return nil, &DecodeError{Length: n, Message: fmt.Sprintf("bad header %02X %02X", buf[0], buf[1])}
	}
	if buf[n-2] != TrailerByte0 || buf[n-1] != TrailerByte1 {
		return nil, &DecodeError{Length: n, Message: fmt.Sprintf("bad trailer %02X %02X", buf[n-2], buf[n-1])}
	}

	payload := make([]byte, n-FrameOverhead)
	copy(payload, buf[offsetPayload:n-4])

	return &Frame{
		Length:   buf[offsetLength],
		Sequence: buf[offsetSequence],
		Address:  buf[offsetAddress],
		Function: buf[offsetFunction],
		Payload:  payload,
		CRC:      uint16(buf[n-4]) | uint16(buf[n-3])<<8,
	}, nil
}

// Sequencer hands out frame sequence numbers 1..255, wrapping back to 1.
// It is safe for concurrent use.
type Sequencer struct {
	mu   sync.Mutex
	last uint8
}

// Next returns the sequence number for the next outgoing frame
func (s *Sequencer) Next() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last >= SequenceMax {
		s.last = SequenceMin
	} else {
		s.last++
	}
	return s.last
}
