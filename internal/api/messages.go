// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"time"

	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

// MessageType names a WebSocket event
type MessageType string

const (
	// Server to client
	MessageTypeUpdateStatus MessageType = "update_status"
	MessageTypeError        MessageType = "error"

	// Client to server
	MessageTypeRequestStatus MessageType = "request_status"
)

// Message is the envelope for every WebSocket frame
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

// NewMessage stamps a message with the current time
func NewMessage(t MessageType, data any) Message {
	return Message{Type: t, Timestamp: time.Now(), Data: data}
}

type clientMessage struct {
	Type MessageType `json:"type"`
}

type temperatureRequest struct {
	Temperature *float64 `json:"temperature"`
}

type deviationRequest struct {
	Deviation *int `json:"deviation"`
}

type openLocksRequest struct {
	Indices []int `json:"indices"`
}

type compressorRequest struct {
	Start *bool `json:"start"`
}

type autoControlRequest struct {
	Enable *bool `json:"enable"`
}

// systemParametersRequest leaves absent fields nil so validation can name
// the first missing one
type systemParametersRequest struct {
	DeviceCode      *string  `json:"device_code"`
	Address         *uint8   `json:"address"`
	UploadInterval  *uint8   `json:"upload_interval"`
	CompressorDelay *uint8   `json:"compressor_delay"`
	Temperature     *float64 `json:"temperature"`
	Deviation       *uint8   `json:"deviation"`
}

func (r systemParametersRequest) toParameters() (lockproto.SystemParameters, error) {
	p := lockproto.SystemParameters{
		Address:         r.Address,
		UploadInterval:  r.UploadInterval,
		CompressorDelay: r.CompressorDelay,
		Temperature:     r.Temperature,
		Deviation:       r.Deviation,
	}
	if r.DeviceCode != nil {
		code, err := lockproto.ParseDeviceCode(*r.DeviceCode)
		if err != nil {
			return p, err
		}
		p.DeviceCode = &code
	}
	return p, nil
}

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statisticsResponse struct {
	StartTime       time.Time `json:"start_time"`
	LastUpdate      time.Time `json:"last_update"`
	TotalFrames     uint64    `json:"total_frames"`
	TelemetryFrames uint64    `json:"telemetry_frames"`
	AckFrames       uint64    `json:"ack_frames"`
	IgnoredFrames   uint64    `json:"ignored_frames"`
	CRCErrors       uint64    `json:"crc_errors"`
	DecodeErrors    uint64    `json:"decode_errors"`
	Anomalies       uint64    `json:"anomalies"`
	CommandsSent    uint64    `json:"commands_sent"`
	WriteErrors     uint64    `json:"write_errors"`
	FrameRate       float64   `json:"frame_rate"`
	ErrorRate       float64   `json:"error_rate"`
	WebSocketPeers  int       `json:"websocket_clients"`
}

func newStatisticsResponse(s lockproto.Statistics, peers int) statisticsResponse {
	return statisticsResponse{
		StartTime:       s.StartTime,
		LastUpdate:      s.LastUpdateTime,
		TotalFrames:     s.TotalFrames,
		TelemetryFrames: s.TelemetryFrames,
		AckFrames:       s.AckFrames,
		IgnoredFrames:   s.IgnoredFrames,
		CRCErrors:       s.CRCErrors,
		DecodeErrors:    s.DecodeErrors,
		Anomalies:       s.Anomalies,
		CommandsSent:    s.CommandsSent,
		WriteErrors:     s.WriteErrors,
		FrameRate:       s.FrameRate,
		ErrorRate:       s.ErrorRate,
		WebSocketPeers:  peers,
	}
}
