// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CalculateCRC computes the CRC-16/XMODEM checksum for the given data
func CalculateCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// appendCRC appends the checksum of data to dst, low byte first
func appendCRC(dst []byte, crc uint16) []byte {
	return append(dst, byte(crc), byte(crc>>8))
}

// VerifyCRC recomputes the checksum over a complete frame and compares it
// against the transmitted one. The frame must include header and trailer.
func VerifyCRC(frame []byte) error {
	if len(frame) < FrameOverhead {
		return &DecodeError{Length: len(frame), Message: "frame shorter than fixed overhead"}
	}
	end := len(frame) - 4
	expected := CalculateCRC(frame[offsetLength:end])
	received := uint16(frame[end]) | uint16(frame[end+1])<<8
	if expected != received {
		return &CRCError{Expected: expected, Received: received}
	}
	return nil
}
