// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"strings"
	"testing"
)

func TestStatisticsUpdate(t *testing.T) {
	s := NewStatistics()

	tel, _ := Parse(syntheticTelemetry(1, 1))
	ack, _ := Parse(EncodeAck(2, 1, FuncCompressor, 1))
	other, _ := Parse(BuildFrame(0x0F, 3, 1, 0x30, []byte{1, 2, 3, 4, 5}))

	s.Update(tel, nil, []Anomaly{{Type: AnomalyCompressorFault}})
	s.Update(ack, nil, nil)
	s.Update(other, nil, nil)
	s.Update(nil, &CRCError{Expected: 1, Received: 2}, nil)
	s.Update(nil, &DecodeError{Length: 3}, nil)
	s.RecordCommand(nil)
	s.RecordCommand(&DecodeError{})

	checks := []struct {
		name string
		got  uint64
		want uint64
	}{
		{"TotalFrames", s.TotalFrames, 5},
		{"TelemetryFrames", s.TelemetryFrames, 1},
		{"AckFrames", s.AckFrames, 1},
		{"IgnoredFrames", s.IgnoredFrames, 1},
		{"CRCErrors", s.CRCErrors, 1},
		{"DecodeErrors", s.DecodeErrors, 1},
		{"Anomalies", s.Anomalies, 1},
		{"CommandsSent", s.CommandsSent, 1},
		{"WriteErrors", s.WriteErrors, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	out := s.String()
	if !strings.Contains(out, "CRC Errors:") || !strings.Contains(out, "Write Errors:") {
		t.Errorf("String() missing error lines:\n%s", out)
	}

	s.Reset()
	if s.TotalFrames != 0 || s.CommandsSent != 0 {
		t.Errorf("Reset() left counters: %+v", s)
	}
}

func TestValidateTelemetry(t *testing.T) {
	clean := &Telemetry{SystemStatus: SystemRunning, CompressorStatus: CompressorOn, SetPoint: 4, Deviation: 2}
	if got := ValidateTelemetry(clean); len(got) != 0 {
		t.Errorf("ValidateTelemetry(clean) = %v, want none", got)
	}

	bad := &Telemetry{
		SystemCode:       7,
		SystemStatus:     SystemUnknown,
		CompressorStatus: CompressorFault,
		SetPoint:         -3,
		Deviation:        0,
	}
	got := ValidateTelemetry(bad)
	want := []AnomalyType{AnomalyUnknownSystemStatus, AnomalyCompressorFault, AnomalyNegativeSetPoint, AnomalyZeroDeviation}
	if len(got) != len(want) {
		t.Fatalf("ValidateTelemetry(bad) returned %d anomalies, want %d: %v", len(got), len(want), got)
	}
	for i, a := range got {
		if a.Type != want[i] {
			t.Errorf("anomaly[%d] = %v, want %v", i, a.Type, want[i])
		}
	}
}

func TestFormatMessage(t *testing.T) {
	msg, err := Parse(syntheticTelemetry(1, 2))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out := FormatMessage(msg)
	for _, want := range []string{"TELEMETRY", "addr=2", "Compressor: On", "Temp: 5.5C", "open=[1 6]"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatMessage() missing %q:\n%s", want, out)
		}
	}

	cmd, _ := NewSetTemperature(4)
	if got := FormatCommand(cmd.Frame(3, 1)); !strings.Contains(got, "SET_TEMPERATURE") || !strings.Contains(got, "set=4.0C") {
		t.Errorf("FormatCommand() = %q", got)
	}
}
