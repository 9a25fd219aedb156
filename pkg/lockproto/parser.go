// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import "time"

// Kind classifies a received buffer
type Kind int

const (
	KindUnknown Kind = iota
	KindTelemetry
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindTelemetry:
		return "TELEMETRY"
	case KindAck:
		return "ACK"
	default:
		return "UNKNOWN"
	}
}

// Message is the result of parsing one received buffer
type Message struct {
	Kind      Kind
	Frame     *Frame
	Telemetry *Telemetry
	Ack       *Ack
	Raw       []byte
	Received  time.Time
}

// Parse verifies and classifies one buffer by its total length: 44 bytes is
// a telemetry frame, 14 bytes is an acknowledgement, and anything else with
// a valid CRC is returned as KindUnknown for the caller to ignore.
//
// A CRC failure returns an error matching ErrCRCMismatch. A telemetry
// function code on a buffer of any other size returns a DecodeError.
func Parse(buf []byte) (*Message, error) {
	if err := VerifyCRC(buf); err != nil {
		return nil, err
	}

	frame, err := DecodeFrame(buf)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, len(buf))
	copy(raw, buf)
	msg := &Message{Frame: frame, Raw: raw, Received: time.Now()}

	switch len(buf) {
	case TelemetryFrameSize:
		t, err := DecodeTelemetry(buf)
		if err != nil {
			return nil, err
		}
		msg.Kind = KindTelemetry
		msg.Telemetry = t

	case AckFrameSize:
		msg.Kind = KindAck
		msg.Ack = &Ack{
			Sequence:      frame.Sequence,
			Address:       frame.Address,
			Function:      frame.Function,
			AckedSequence: frame.Payload[0],
		}

	default:
		if frame.Function == FuncTelemetry {
			return nil, &DecodeError{Length: len(buf), Function: frame.Function, Message: "unexpected length for telemetry"}
		}
		msg.Kind = KindUnknown
	}

	return msg, nil
}
