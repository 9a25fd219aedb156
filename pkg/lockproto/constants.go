// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package lockproto implements the serial protocol spoken by refrigerated
// parcel-locker appliances.
//
// Every frame on the wire is laid out as
//
//	FF FF | length | seq | address | function | payload... | crc lo | crc hi | FF F7
//
// The CRC is CRC-16/XMODEM over length through the end of the payload and is
// transmitted low byte first. This package provides frame building and
// verification, the temperature and lock-mask codecs, command payload
// builders and the telemetry decoder. It performs no I/O.
package lockproto

// Protocol framing bytes
const (
	HeaderByte0  = 0xFF
	HeaderByte1  = 0xFF
	TrailerByte0 = 0xFF
	TrailerByte1 = 0xF7
)

// Fixed frame overhead: header(2) + length + seq + address + function + crc(2) + trailer(2)
const FrameOverhead = 10

// Field offsets within a frame
const (
	offsetLength   = 2
	offsetSequence = 3
	offsetAddress  = 4
	offsetFunction = 5
	offsetPayload  = 6
)

// Length constants carried in the length byte. Each is fixed per function
// and matches the full frame size.
const (
	LengthCompressor       = 0x0B
	LengthOpenLocks        = 0x0C
	LengthSetTemperature   = 0x0B
	LengthSetDeviation     = 0x0B
	LengthSystemParameters = 0x1C
	LengthTelemetry        = 0x2C
	LengthAck              = 0x0E
)

// Frame sizes as seen by the parser
const (
	TelemetryFrameSize = 44
	AckFrameSize       = 14
	MaxFrameSize       = 64
)

// Function codes
const (
	FuncTelemetry        = 0x01
	FuncCompressor       = 0x02
	FuncOpenLocks        = 0x03
	FuncSetTemperature   = 0x04
	FuncSystemParameters = 0x05
	FuncSetDeviation     = 0x06
)

// Addressing
const (
	AddressBroadcast = 0x00
	AddressMin       = 1
	AddressMax       = 120
)

// Sequence counter range; 0 is never transmitted
const (
	SequenceMin = 1
	SequenceMax = 255
)

// Temperature codec limits
const (
	TemperatureMagnitudeMax = 63
	SetPointMin             = 0
	SetPointMax             = 63
)

// Lock bank
const (
	LockCount = 12
	// Only the low ten lock positions can be addressed by an open command.
	OpenableLocks = 10
)

// System parameter payload
const (
	DeviceCodeSize        = 5
	systemParamsPayloadSz = 18
)

// Telemetry frame offsets (absolute, from the first header byte)
const (
	telemDeviation    = 18
	telemDeviceCode   = 24
	telemSystemStatus = 29
	telemCompressor   = 31
	telemSetPoint     = 32
	telemCurrentTemp  = 33
	telemLocks        = 36
)

// SystemStatus is the appliance run state reported in telemetry
type SystemStatus uint8

const (
	SystemStopped SystemStatus = iota
	SystemPreStart
	SystemRunning
	SystemUnknown
)

// ParseSystemStatus maps a raw telemetry code to a SystemStatus
func ParseSystemStatus(code uint8) SystemStatus {
	if code <= uint8(SystemRunning) {
		return SystemStatus(code)
	}
	return SystemUnknown
}

func (s SystemStatus) String() string {
	switch s {
	case SystemStopped:
		return "Stopped"
	case SystemPreStart:
		return "PreStart"
	case SystemRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name for JSON consumers
func (s SystemStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CompressorStatus is the compressor state reported in telemetry
type CompressorStatus uint8

const (
	CompressorOff CompressorStatus = iota
	CompressorPreStart
	CompressorOn
	CompressorFault
	CompressorUnknown
)

// ParseCompressorStatus maps a raw telemetry code to a CompressorStatus
func ParseCompressorStatus(code uint8) CompressorStatus {
	if code <= uint8(CompressorFault) {
		return CompressorStatus(code)
	}
	return CompressorUnknown
}

func (c CompressorStatus) String() string {
	switch c {
	case CompressorOff:
		return "Off"
	case CompressorPreStart:
		return "PreStart"
	case CompressorOn:
		return "On"
	case CompressorFault:
		return "Fault"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name for JSON consumers
func (c CompressorStatus) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
