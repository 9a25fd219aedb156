// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import "fmt"

// AnomalyType represents different kinds of suspicious telemetry
type AnomalyType int

const (
	AnomalyUnknownSystemStatus AnomalyType = iota
	AnomalyUnknownCompressorStatus
	AnomalyCompressorFault
	AnomalyNegativeSetPoint
	AnomalyZeroDeviation
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyUnknownSystemStatus:
		return "unknown_system_status"
	case AnomalyUnknownCompressorStatus:
		return "unknown_compressor_status"
	case AnomalyCompressorFault:
		return "compressor_fault"
	case AnomalyNegativeSetPoint:
		return "negative_set_point"
	case AnomalyZeroDeviation:
		return "zero_deviation"
	default:
		return "unknown"
	}
}

// Anomaly is a telemetry value that decoded cleanly but looks wrong
type Anomaly struct {
	Type    AnomalyType
	Message string
	Details map[string]any
}

// ValidateTelemetry detects anomalies in a decoded status frame.
// Returns an empty slice when nothing looks wrong.
func ValidateTelemetry(t *Telemetry) []Anomaly {
	anomalies := []Anomaly{}

	if t.SystemStatus == SystemUnknown {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyUnknownSystemStatus,
			Message: fmt.Sprintf("Unknown system status code=%d", t.SystemCode),
			Details: map[string]any{"code": t.SystemCode},
		})
	}

	switch t.CompressorStatus {
	case CompressorUnknown:
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyUnknownCompressorStatus,
			Message: fmt.Sprintf("Unknown compressor status code=%d", t.CompressorCode),
			Details: map[string]any{"code": t.CompressorCode},
		})
	case CompressorFault:
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyCompressorFault,
			Message: "Compressor reports fault",
			Details: map[string]any{"current": t.CurrentTemperature},
		})
	}

	if t.SetPoint < 0 {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyNegativeSetPoint,
			Message: fmt.Sprintf("Set point %.1fC is below the commandable range", t.SetPoint),
			Details: map[string]any{"set_point": t.SetPoint},
		})
	}

	// A zero band makes the hysteresis controller toggle on every frame
	if t.Deviation == 0 {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyZeroDeviation,
			Message: "Temperature deviation is 0",
		})
	}

	return anomalies
}
