// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"encoding/hex"
	"fmt"
)

// DeviceCode is the 5-byte appliance identifier
type DeviceCode [DeviceCodeSize]byte

// ParseDeviceCode parses the 10 hex digit form of a device code
func ParseDeviceCode(s string) (DeviceCode, error) {
	var code DeviceCode
	raw, err := hex.DecodeString(s)
	if err != nil {
		return code, &ValidationError{Field: "device_code", Value: s, Message: "not a hex string"}
	}
	if len(raw) != DeviceCodeSize {
		return code, &ValidationError{Field: "device_code", Value: s, Message: fmt.Sprintf("must be %d bytes", DeviceCodeSize)}
	}
	copy(code[:], raw)
	return code, nil
}

// String returns the upper-case hex form
func (c DeviceCode) String() string {
	return fmt.Sprintf("%X", c[:])
}

// MarshalText renders the code as hex for JSON consumers
func (c DeviceCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IsZero reports whether no code has been set
func (c DeviceCode) IsZero() bool {
	return c == DeviceCode{}
}

// Telemetry is the decoded content of a 44-byte status frame
type Telemetry struct {
	Sequence           uint8
	Address            uint8
	Deviation          uint8
	DeviceCode         DeviceCode
	SystemCode         uint8
	SystemStatus       SystemStatus
	CompressorCode     uint8
	CompressorStatus   CompressorStatus
	SetPoint           float64
	CurrentTemperature float64
	Locks              LockStates
}

// DecodeTelemetry decodes every field of a status frame. The buffer must be
// the complete frame; CRC verification is left to the caller.
func DecodeTelemetry(buf []byte) (*Telemetry, error) {
	if len(buf) != TelemetryFrameSize {
		fn := uint8(0)
		if len(buf) > offsetFunction {
			fn = buf[offsetFunction]
		}
		return nil, &DecodeError{
			Length:   len(buf),
			Function: fn,
			Message:  fmt.Sprintf("telemetry frame must be %d bytes", TelemetryFrameSize),
		}
	}

	t := &Telemetry{
		Sequence:           buf[offsetSequence],
		Address:            buf[offsetAddress],
		Deviation:          buf[telemDeviation],
		SystemCode:         buf[telemSystemStatus],
		SystemStatus:       ParseSystemStatus(buf[telemSystemStatus]),
		CompressorCode:     buf[telemCompressor],
		CompressorStatus:   ParseCompressorStatus(buf[telemCompressor]),
		SetPoint:           DecodeTemperature(buf[telemSetPoint]),
		CurrentTemperature: DecodeTemperature(buf[telemCurrentTemp]),
		Locks:              DecodeLockMask(maskFromBytes(buf[telemLocks : telemLocks+2])),
	}
	copy(t.DeviceCode[:], buf[telemDeviceCode:telemDeviceCode+DeviceCodeSize])
	return t, nil
}

// EncodeTelemetry builds a status frame as the appliance would send it.
// Raw status codes are written when set, otherwise the enum values.
func EncodeTelemetry(seq uint8, t *Telemetry) ([]byte, error) {
	setPoint, err := EncodeTemperature(t.SetPoint)
	if err != nil {
		return nil, fmt.Errorf("set point: %w", err)
	}
	current, err := EncodeTemperature(t.CurrentTemperature)
	if err != nil {
		return nil, fmt.Errorf("current temperature: %w", err)
	}

	payload := make([]byte, TelemetryFrameSize-FrameOverhead)
	at := func(offset int) int { return offset - offsetPayload }

	payload[at(telemDeviation)] = t.Deviation
	copy(payload[at(telemDeviceCode):], t.DeviceCode[:])
	payload[at(telemSystemStatus)] = statusCode(t.SystemCode, uint8(t.SystemStatus))
	payload[at(telemCompressor)] = statusCode(t.CompressorCode, uint8(t.CompressorStatus))
	payload[at(telemSetPoint)] = setPoint
	payload[at(telemCurrentTemp)] = current
	copy(payload[at(telemLocks):], maskBytes(EncodeLockMask(t.Locks)))

	return BuildFrame(LengthTelemetry, seq, t.Address, FuncTelemetry, payload), nil
}

func statusCode(raw, enum uint8) uint8 {
	if raw != 0 {
		return raw
	}
	return enum
}

// Ack is an acknowledgement frame. The appliance echoes the function it is
// acknowledging and places the acknowledged sequence in the first payload byte.
type Ack struct {
	Sequence      uint8
	Address       uint8
	Function      uint8
	AckedSequence uint8
}

// EncodeAck builds a 14-byte acknowledgement frame
func EncodeAck(seq, address, function, ackedSeq uint8) []byte {
	payload := []byte{ackedSeq, 0x00, 0x00, 0x00}
	return BuildFrame(LengthAck, seq, address, function, payload)
}
