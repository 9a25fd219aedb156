// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame and command counters. It is not safe for
// concurrent use; callers serialize access.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Inbound
	TotalFrames     uint64
	TelemetryFrames uint64
	AckFrames       uint64
	IgnoredFrames   uint64
	CRCErrors       uint64
	DecodeErrors    uint64
	Anomalies       uint64

	// Outbound
	CommandsSent uint64
	WriteErrors  uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records the outcome of parsing one received buffer
func (s *Statistics) Update(msg *Message, parseErr error, anomalies []Anomaly) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if parseErr != nil {
		if errors.Is(parseErr, ErrCRCMismatch) {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	switch msg.Kind {
	case KindTelemetry:
		s.TelemetryFrames++
	case KindAck:
		s.AckFrames++
	default:
		s.IgnoredFrames++
	}
	s.Anomalies += uint64(len(anomalies))
}

// RecordCommand records one command write attempt
func (s *Statistics) RecordCommand(writeErr error) {
	if writeErr != nil {
		s.WriteErrors++
		return
	}
	s.CommandsSent++
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.CRCErrors+s.DecodeErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	pct := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Telemetry:       %8d (%.1f%%)\n", s.TelemetryFrames, pct(s.TelemetryFrames))
	result += fmt.Sprintf("Acks:            %8d (%.1f%%)\n", s.AckFrames, pct(s.AckFrames))
	if s.IgnoredFrames > 0 {
		result += fmt.Sprintf("Ignored:         %8d (%.1f%%)\n", s.IgnoredFrames, pct(s.IgnoredFrames))
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, pct(s.CRCErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, pct(s.DecodeErrors))
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}
	result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
	if s.WriteErrors > 0 {
		result += fmt.Sprintf("Write Errors:    %8d\n", s.WriteErrors)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
