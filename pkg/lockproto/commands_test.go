// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func bytesEqual(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (got % X)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte[%d] = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}

func TestNewCompressor(t *testing.T) {
	bytesEqual(t, NewCompressor(true).Frame(1, 1),
		[]byte{0xFF, 0xFF, 0x0B, 0x01, 0x01, 0x02, 0x01, 0x38, 0xDB, 0xFF, 0xF7})

	stop := NewCompressor(false)
	if stop.Payload[0] != 0x00 {
		t.Errorf("stop payload = 0x%02X, want 0x00", stop.Payload[0])
	}
}

func TestNewOpenLocks(t *testing.T) {
	bytesEqual(t, NewOpenLocks([]int{1, 6}).Frame(1, 5),
		[]byte{0xFF, 0xFF, 0x0C, 0x01, 0x05, 0x03, 0x21, 0x00, 0x70, 0x71, 0xFF, 0xF7})

	tests := []struct {
		name  string
		locks []int
		want  []byte
	}{
		{"locks 11 and 12 leave mask empty", []int{11, 12}, []byte{0x00, 0x00}},
		{"lock 1 with lock 12 sets only bit 0", []int{1, 12}, []byte{0x01, 0x00}},
		{"lock 9 lands in high byte", []int{9}, []byte{0x00, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bytesEqual(t, NewOpenLocks(tt.locks).Payload, tt.want)
		})
	}
}

func TestNewSetTemperature(t *testing.T) {
	cmd, err := NewSetTemperature(25.5)
	if err != nil {
		t.Fatalf("NewSetTemperature() error = %v", err)
	}
	bytesEqual(t, cmd.Frame(7, 1),
		[]byte{0xFF, 0xFF, 0x0B, 0x07, 0x01, 0x04, 0x33, 0x16, 0x40, 0xFF, 0xF7})

	for _, bad := range []float64{-1, 64, 63.5} {
		_, err := NewSetTemperature(bad)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("NewSetTemperature(%v) error = %v, want *ValidationError", bad, err)
		}
	}
}

func TestNewSetDeviation(t *testing.T) {
	tests := []struct {
		value   int
		wantErr bool
	}{
		{0, false},
		{2, false},
		{255, false},
		{-1, true},
		{256, true},
	}

	for _, tt := range tests {
		cmd, err := NewSetDeviation(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewSetDeviation(%d) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (cmd.Function != FuncSetDeviation || cmd.Payload[0] != byte(tt.value)) {
			t.Errorf("NewSetDeviation(%d) = %+v", tt.value, cmd)
		}
	}
}

func validParams() SystemParameters {
	code, _ := ParseDeviceCode("0102030405")
	return SystemParameters{
		DeviceCode:      &code,
		Address:         ptr(uint8(7)),
		UploadInterval:  ptr(uint8(30)),
		CompressorDelay: ptr(uint8(3)),
		Temperature:     ptr(4.0),
		Deviation:       ptr(uint8(2)),
	}
}

func TestNewSystemParameters(t *testing.T) {
	cmd, err := NewSystemParameters(validParams())
	if err != nil {
		t.Fatalf("NewSystemParameters() error = %v", err)
	}
	if !cmd.Broadcast {
		t.Error("system parameters not broadcast")
	}

	bytesEqual(t, cmd.Payload, []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, // device code
		0x07, 0x00, // address
		0x1E, 0x03, // interval, delay
		0x00, 0x00,
		0x08, 0x02, // temperature, deviation
		0xFF, 0xFF, 0xFF, 0xFF, 0x00,
	})

	frame := cmd.Frame(1, 9)
	if frame[4] != AddressBroadcast {
		t.Errorf("address byte = 0x%02X, want broadcast", frame[4])
	}
	if len(frame) != LengthSystemParameters {
		t.Errorf("frame is %d bytes, want %d", len(frame), LengthSystemParameters)
	}
}

func TestNewSystemParametersRequiresEveryField(t *testing.T) {
	tests := []struct {
		field string
		clear func(*SystemParameters)
	}{
		{"device_code", func(p *SystemParameters) { p.DeviceCode = nil }},
		{"address", func(p *SystemParameters) { p.Address = nil }},
		{"upload_interval", func(p *SystemParameters) { p.UploadInterval = nil }},
		{"compressor_delay", func(p *SystemParameters) { p.CompressorDelay = nil }},
		{"temperature", func(p *SystemParameters) { p.Temperature = nil }},
		{"deviation", func(p *SystemParameters) { p.Deviation = nil }},
		{"address", func(p *SystemParameters) { p.Address = ptr(uint8(121)) }},
		{"temperature", func(p *SystemParameters) { p.Temperature = ptr(-2.0) }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			p := validParams()
			tt.clear(&p)
			_, err := NewSystemParameters(p)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.field)
			}
		})
	}
}

func TestParseDeviceCode(t *testing.T) {
	if _, err := ParseDeviceCode("zz"); err == nil {
		t.Error("ParseDeviceCode(zz) succeeded")
	}
	if _, err := ParseDeviceCode("0102"); err == nil {
		t.Error("ParseDeviceCode(short) succeeded")
	}
	code, err := ParseDeviceCode("a1b2c3d4e5")
	if err != nil {
		t.Fatalf("ParseDeviceCode() error = %v", err)
	}
	if code.String() != "A1B2C3D4E5" {
		t.Errorf("String() = %s", code)
	}
}

func TestDecodeCommand(t *testing.T) {
	setTemp, _ := NewSetTemperature(4.5)
	setDev, _ := NewSetDeviation(3)
	params, _ := NewSystemParameters(validParams())

	tests := []struct {
		name  string
		cmd   Command
		check func(t *testing.T, d *DecodedCommand)
	}{
		{"compressor", NewCompressor(true), func(t *testing.T, d *DecodedCommand) {
			if !d.CompressorStart {
				t.Error("CompressorStart = false")
			}
		}},
		{"open locks", NewOpenLocks([]int{2, 10}), func(t *testing.T, d *DecodedCommand) {
			if len(d.Locks) != 2 || d.Locks[0] != 2 || d.Locks[1] != 10 {
				t.Errorf("Locks = %v, want [2 10]", d.Locks)
			}
		}},
		{"set temperature", setTemp, func(t *testing.T, d *DecodedCommand) {
			if d.SetPoint != 4.5 {
				t.Errorf("SetPoint = %v, want 4.5", d.SetPoint)
			}
		}},
		{"set deviation", setDev, func(t *testing.T, d *DecodedCommand) {
			if d.Deviation != 3 {
				t.Errorf("Deviation = %d, want 3", d.Deviation)
			}
		}},
		{"system parameters", params, func(t *testing.T, d *DecodedCommand) {
			p := d.Parameters
			if p == nil {
				t.Fatal("Parameters = nil")
			}
			if *p.Address != 7 || *p.UploadInterval != 30 || *p.CompressorDelay != 3 || *p.Temperature != 4 || *p.Deviation != 2 {
				t.Errorf("Parameters = addr %d interval %d delay %d temp %v dev %d",
					*p.Address, *p.UploadInterval, *p.CompressorDelay, *p.Temperature, *p.Deviation)
			}
			if p.DeviceCode.String() != "0102030405" {
				t.Errorf("DeviceCode = %s", p.DeviceCode)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame(tt.cmd.Frame(5, 1))
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			d, err := DecodeCommand(f)
			if err != nil {
				t.Fatalf("DecodeCommand() error = %v", err)
			}
			if d.Function != tt.cmd.Function {
				t.Errorf("Function = 0x%02X, want 0x%02X", d.Function, tt.cmd.Function)
			}
			tt.check(t, d)
		})
	}
}

func TestDecodeCommandWrongPayloadLength(t *testing.T) {
	f := &Frame{Length: LengthOpenLocks, Function: FuncOpenLocks, Payload: []byte{0x01}}
	_, err := DecodeCommand(f)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("DecodeCommand() error = %v, want *DecodeError", err)
	}

	f = &Frame{Function: 0x7A, Payload: []byte{0x01}}
	if _, err := DecodeCommand(f); err == nil {
		t.Error("DecodeCommand(unknown function) succeeded")
	}
}
