// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"fmt"
	"strings"
)

// FormatFunction returns the human-readable name for a function code
func FormatFunction(fn uint8) string {
	switch fn {
	case FuncTelemetry:
		return "TELEMETRY"
	case FuncCompressor:
		return "COMPRESSOR"
	case FuncOpenLocks:
		return "OPEN_LOCKS"
	case FuncSetTemperature:
		return "SET_TEMPERATURE"
	case FuncSystemParameters:
		return "SYSTEM_PARAMETERS"
	case FuncSetDeviation:
		return "SET_DEVIATION"
	default:
		return "UNKNOWN"
	}
}

// FormatHex renders bytes as space-separated upper-case hex
func FormatHex(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// FormatMessage formats a parsed message into a human-readable string
func FormatMessage(m *Message) string {
	timestamp := m.Received.Format("15:04:05.000")
	f := m.Frame
	result := fmt.Sprintf("[%s] %s %s (0x%02X) seq=%d addr=%d len=%d\n",
		timestamp, m.Kind, FormatFunction(f.Function), f.Function, f.Sequence, f.Address, f.Size())

	switch m.Kind {
	case KindTelemetry:
		result += FormatTelemetry(m.Telemetry)
	case KindAck:
		result += fmt.Sprintf("  Acknowledges: %s seq=%d\n", FormatFunction(m.Ack.Function), m.Ack.AckedSequence)
	default:
		result += fmt.Sprintf("  Payload: %s\n", FormatHex(f.Payload))
	}
	return result
}

// FormatTelemetry formats the fields of a status frame
func FormatTelemetry(t *Telemetry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Device: %s  System: %s  Compressor: %s\n", t.DeviceCode, t.SystemStatus, t.CompressorStatus)
	fmt.Fprintf(&sb, "  Temp: %.1fC  Set: %.1fC  Deviation: %d\n", t.CurrentTemperature, t.SetPoint, t.Deviation)
	fmt.Fprintf(&sb, "  Locks: %s  open=%v\n", t.Locks, t.Locks.Open())
	return sb.String()
}

// FormatCommand describes an outgoing command frame
func FormatCommand(frame []byte) string {
	f, err := DecodeFrame(frame)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	d, err := DecodeCommand(f)
	if err != nil {
		return fmt.Sprintf("%s seq=%d addr=%d [%s]", FormatFunction(f.Function), f.Sequence, f.Address, FormatHex(frame))
	}

	var detail string
	switch d.Function {
	case FuncCompressor:
		detail = "stop"
		if d.CompressorStart {
			detail = "start"
		}
	case FuncOpenLocks:
		detail = fmt.Sprintf("locks=%v", d.Locks)
	case FuncSetTemperature:
		detail = fmt.Sprintf("set=%.1fC", d.SetPoint)
	case FuncSetDeviation:
		detail = fmt.Sprintf("deviation=%d", d.Deviation)
	case FuncSystemParameters:
		p := d.Parameters
		detail = fmt.Sprintf("code=%s addr=%d interval=%d delay=%d temp=%.0fC deviation=%d",
			p.DeviceCode, *p.Address, *p.UploadInterval, *p.CompressorDelay, *p.Temperature, *p.Deviation)
	}
	return fmt.Sprintf("%s seq=%d addr=%d %s", FormatFunction(f.Function), f.Sequence, f.Address, detail)
}
