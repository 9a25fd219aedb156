// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"errors"
	"testing"
)

// syntheticTelemetry lays out a status frame byte by byte using absolute
// frame offsets: locks 1 and 6 open, compressor On, current 5.5C, set 4C,
// deviation 2.
func syntheticTelemetry(seq, addr uint8) []byte {
	payload := make([]byte, TelemetryFrameSize-FrameOverhead)
	set := func(offset int, b byte) { payload[offset-6] = b }

	set(18, 0x02)
	for i, b := range []byte{0x12, 0x34, 0x56, 0x78, 0x9A} {
		set(24+i, b)
	}
	set(29, 0x02)
	set(31, 0x02)
	set(32, 0x08)
	set(33, 0x0B)
	set(36, 0x21)
	set(37, 0x00)

	return BuildFrame(LengthTelemetry, seq, addr, FuncTelemetry, payload)
}

func TestParseTelemetry(t *testing.T) {
	frame := syntheticTelemetry(9, 3)
	if len(frame) != TelemetryFrameSize {
		t.Fatalf("synthetic frame is %d bytes", len(frame))
	}

	msg, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Kind != KindTelemetry {
		t.Fatalf("Kind = %v, want TELEMETRY", msg.Kind)
	}

	tel := msg.Telemetry
	if tel.Sequence != 9 || tel.Address != 3 {
		t.Errorf("seq/addr = %d/%d, want 9/3", tel.Sequence, tel.Address)
	}
	if tel.CompressorStatus != CompressorOn {
		t.Errorf("CompressorStatus = %v, want On", tel.CompressorStatus)
	}
	if tel.SystemStatus != SystemRunning {
		t.Errorf("SystemStatus = %v, want Running", tel.SystemStatus)
	}
	if tel.CurrentTemperature != 5.5 {
		t.Errorf("CurrentTemperature = %v, want 5.5", tel.CurrentTemperature)
	}
	if tel.SetPoint != 4 {
		t.Errorf("SetPoint = %v, want 4", tel.SetPoint)
	}
	if tel.Deviation != 2 {
		t.Errorf("Deviation = %d, want 2", tel.Deviation)
	}
	if tel.DeviceCode.String() != "123456789A" {
		t.Errorf("DeviceCode = %s, want 123456789A", tel.DeviceCode)
	}
	want := LockStates{true, false, false, false, false, true, false, false, false, false, false, false}
	if tel.Locks != want {
		t.Errorf("Locks = %v, want %v", tel.Locks, want)
	}
}

func TestParseStatusCodes(t *testing.T) {
	tests := []struct {
		sys, comp byte
		wantSys   SystemStatus
		wantComp  CompressorStatus
	}{
		{0, 0, SystemStopped, CompressorOff},
		{1, 1, SystemPreStart, CompressorPreStart},
		{2, 2, SystemRunning, CompressorOn},
		{3, 3, SystemUnknown, CompressorFault},
		{9, 4, SystemUnknown, CompressorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.wantSys.String()+"/"+tt.wantComp.String(), func(t *testing.T) {
			frame := syntheticTelemetry(1, 1)
			frame[29] = tt.sys
			frame[31] = tt.comp
			frame = BuildFrame(frame[2], frame[3], frame[4], frame[5], frame[6:40])

			msg, err := Parse(frame)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if msg.Telemetry.SystemStatus != tt.wantSys {
				t.Errorf("SystemStatus = %v, want %v", msg.Telemetry.SystemStatus, tt.wantSys)
			}
			if msg.Telemetry.CompressorStatus != tt.wantComp {
				t.Errorf("CompressorStatus = %v, want %v", msg.Telemetry.CompressorStatus, tt.wantComp)
			}
		})
	}
}

func TestParseAck(t *testing.T) {
	frame := EncodeAck(4, 1, FuncOpenLocks, 17)
	if len(frame) != AckFrameSize {
		t.Fatalf("ack frame is %d bytes, want %d", len(frame), AckFrameSize)
	}

	msg, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Kind != KindAck {
		t.Fatalf("Kind = %v, want ACK", msg.Kind)
	}
	if msg.Ack.Function != FuncOpenLocks || msg.Ack.AckedSequence != 17 {
		t.Errorf("Ack = %+v", msg.Ack)
	}
	if msg.Telemetry != nil {
		t.Error("ack carries telemetry")
	}
}

func TestParseUnknownLengthIgnored(t *testing.T) {
	frame := BuildFrame(0x10, 1, 1, 0x42, []byte{1, 2, 3, 4, 5, 6})
	msg, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Kind != KindUnknown {
		t.Errorf("Kind = %v, want UNKNOWN", msg.Kind)
	}
}

func TestParseTelemetryFunctionWrongLength(t *testing.T) {
	frame := BuildFrame(LengthTelemetry, 1, 1, FuncTelemetry, make([]byte, 20))
	_, err := Parse(frame)

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("Parse() error = %v, want *DecodeError", err)
	}
	if decErr.Function != FuncTelemetry {
		t.Errorf("Function = 0x%02X, want 0x%02X", decErr.Function, FuncTelemetry)
	}
}

func TestParseCorruptCRC(t *testing.T) {
	frame := syntheticTelemetry(1, 1)
	frame[40] ^= 0x01

	msg, err := Parse(frame)
	if !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("Parse() error = %v, want ErrCRCMismatch", err)
	}
	if msg != nil {
		t.Error("Parse() returned a message for a corrupt frame")
	}
}

func TestDecodeTelemetryRejectsWrongSize(t *testing.T) {
	_, err := DecodeTelemetry(make([]byte, 43))
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("DecodeTelemetry(43 bytes) error = %v, want *DecodeError", err)
	}
}

func TestEncodeTelemetryMatchesLayout(t *testing.T) {
	code, _ := ParseDeviceCode("123456789A")
	got, err := EncodeTelemetry(9, &Telemetry{
		Address:            3,
		Deviation:          2,
		DeviceCode:         code,
		SystemStatus:       SystemRunning,
		CompressorStatus:   CompressorOn,
		SetPoint:           4,
		CurrentTemperature: 5.5,
		Locks:              DecodeLockMask(0x0021),
	})
	if err != nil {
		t.Fatalf("EncodeTelemetry() error = %v", err)
	}

	want := syntheticTelemetry(9, 3)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte[%d] = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}
