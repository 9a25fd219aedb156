// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"sync"
	"time"

	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

// State is a point-in-time copy of everything known about the appliance
type State struct {
	Connected          bool                       `json:"connected"`
	SessionID          string                     `json:"session_id,omitempty"`
	LastUpdate         time.Time                  `json:"last_update"`
	DeviceCode         lockproto.DeviceCode       `json:"device_code"`
	Address            uint8                      `json:"address"`
	UploadInterval     uint8                      `json:"upload_interval"`
	CompressorDelay    uint8                      `json:"compressor_delay"`
	SetPoint           float64                    `json:"set_point_temperature"`
	Deviation          uint8                      `json:"temperature_deviation"`
	CurrentTemperature float64                    `json:"current_temperature"`
	CompressorStatus   lockproto.CompressorStatus `json:"compressor_status"`
	SystemStatus       lockproto.SystemStatus     `json:"system_status"`
	Locks              lockproto.LockStates       `json:"lock_status"`
	AutoCompressor     bool                       `json:"auto_compressor_enabled"`
}

func defaultState(address uint8, auto bool) State {
	return State{
		Address:          address,
		CompressorStatus: lockproto.CompressorUnknown,
		SystemStatus:     lockproto.SystemUnknown,
		AutoCompressor:   auto,
	}
}

// applyTelemetry copies every decoded field of a status frame
func (s *State) applyTelemetry(t *lockproto.Telemetry, at time.Time) {
	s.LastUpdate = at
	s.DeviceCode = t.DeviceCode
	s.Deviation = t.Deviation
	s.SystemStatus = t.SystemStatus
	s.CompressorStatus = t.CompressorStatus
	s.SetPoint = t.SetPoint
	s.CurrentTemperature = t.CurrentTemperature
	s.Locks = t.Locks
}

// store guards the single State with one mutex. The lock is only held for
// a field-group update or a copy, never across I/O.
type store struct {
	mu    sync.Mutex
	state State
}

func (st *store) snapshot() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// update applies fn under the lock and returns the resulting snapshot
func (st *store) update(fn func(*State)) State {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.state)
	return st.state
}
