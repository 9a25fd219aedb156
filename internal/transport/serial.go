// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial line defaults for the locker appliance
const (
	DefaultBaudRate    = 38400
	DefaultReadTimeout = 200 * time.Millisecond
)

// SerialConfig describes a serial port
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// OpenSerial opens a serial port at 8N1 and wraps it as a Channel
func OpenSerial(cfg SerialConfig) (Channel, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	// Bounded reads let a closed port surface as an error promptly
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Port, err)
	}

	return NewStreamChannel(&serialPort{port: port}, cfg.ReadTimeout), nil
}

// serialPort hides serial.Port's zero-byte timeout reads from the pump
type serialPort struct {
	port serial.Port
}

func (s *serialPort) Read(p []byte) (int, error) {
	for {
		n, err := s.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (s *serialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialPort) Close() error {
	return s.port.Close()
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
