// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator is a software locker appliance. It answers command
// frames with acknowledgements and pushes periodic telemetry, so the
// controller can be exercised without hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
	"go.uber.org/zap"
)

// Thermal model step per tick
const (
	coolingStep = 0.5
	warmingStep = 0.5
	minCabinet  = -20.0
)

// Config seeds the simulated appliance
type Config struct {
	Address         uint8
	DeviceCode      lockproto.DeviceCode
	SetPoint        float64
	Deviation       uint8
	Ambient         float64
	UploadInterval  uint8
	CompressorDelay uint8
	LockOpenTicks   int
}

// DefaultConfig returns a cabinet at room temperature with a 4C set point
func DefaultConfig() Config {
	return Config{
		Address:         1,
		DeviceCode:      lockproto.DeviceCode{0x10, 0x20, 0x30, 0x40, 0x50},
		SetPoint:        4,
		Deviation:       2,
		Ambient:         22,
		UploadInterval:  5,
		CompressorDelay: 2,
		LockOpenTicks:   3,
	}
}

// Device holds appliance state. All methods are safe for concurrent use.
type Device struct {
	logger *zap.Logger
	seq    lockproto.Sequencer

	mu          sync.Mutex
	cfg         Config
	current     float64
	compressor  lockproto.CompressorStatus
	preStart    int
	lockTimers  [lockproto.LockCount]int
	commandsRun int
}

// New creates a device at ambient temperature with the compressor off
func New(cfg Config, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{
		logger:     logger.Named("simulator"),
		cfg:        cfg,
		current:    cfg.Ambient,
		compressor: lockproto.CompressorOff,
	}
}

// HandleFrame applies one received command and returns the acknowledgement
// to send back. Frames for another address yield a nil reply.
func (d *Device) HandleFrame(buf []byte) ([]byte, error) {
	if err := lockproto.VerifyCRC(buf); err != nil {
		return nil, err
	}
	f, err := lockproto.DecodeFrame(buf)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if f.Address != lockproto.AddressBroadcast && f.Address != d.cfg.Address {
		return nil, nil
	}

	cmd, err := lockproto.DecodeCommand(f)
	if err != nil {
		return nil, err
	}

	switch cmd.Function {
	case lockproto.FuncCompressor:
		d.switchCompressor(cmd.CompressorStart)
	case lockproto.FuncOpenLocks:
		for _, n := range cmd.Locks {
			d.lockTimers[n-1] = d.cfg.LockOpenTicks
		}
	case lockproto.FuncSetTemperature:
		d.cfg.SetPoint = cmd.SetPoint
	case lockproto.FuncSetDeviation:
		d.cfg.Deviation = cmd.Deviation
	case lockproto.FuncSystemParameters:
		p := cmd.Parameters
		if !d.cfg.DeviceCode.IsZero() && *p.DeviceCode != d.cfg.DeviceCode {
			// Broadcast meant for another cabinet
			return nil, nil
		}
		d.cfg.DeviceCode = *p.DeviceCode
		d.cfg.Address = *p.Address
		d.cfg.UploadInterval = *p.UploadInterval
		d.cfg.CompressorDelay = *p.CompressorDelay
		d.cfg.SetPoint = *p.Temperature
		d.cfg.Deviation = *p.Deviation
	}
	d.commandsRun++

	d.logger.Debug("Applied command",
		zap.String("command", lockproto.FormatFunction(cmd.Function)),
		zap.Uint8("seq", cmd.Sequence))

	return lockproto.EncodeAck(d.seq.Next(), d.cfg.Address, cmd.Function, cmd.Sequence), nil
}

func (d *Device) switchCompressor(start bool) {
	switch {
	case !start:
		d.compressor = lockproto.CompressorOff
		d.preStart = 0
	case d.compressor == lockproto.CompressorOn || d.compressor == lockproto.CompressorPreStart:
		// Repeated start is idempotent
	case d.cfg.CompressorDelay > 0:
		d.compressor = lockproto.CompressorPreStart
		d.preStart = int(d.cfg.CompressorDelay)
	default:
		d.compressor = lockproto.CompressorOn
	}
}

// Tick advances the thermal model and lock timers by one step and returns
// the telemetry frame describing the new state
func (d *Device) Tick() ([]byte, error) {
	d.mu.Lock()
	switch d.compressor {
	case lockproto.CompressorPreStart:
		d.preStart--
		if d.preStart <= 0 {
			d.compressor = lockproto.CompressorOn
		}
		d.warm()
	case lockproto.CompressorOn:
		d.current -= coolingStep
		if d.current < minCabinet {
			d.current = minCabinet
		}
	default:
		d.warm()
	}

	for i := range d.lockTimers {
		if d.lockTimers[i] > 0 {
			d.lockTimers[i]--
		}
	}
	t := d.telemetryLocked()
	d.mu.Unlock()

	return lockproto.EncodeTelemetry(d.seq.Next(), &t)
}

func (d *Device) warm() {
	d.current += warmingStep
	if d.current > d.cfg.Ambient {
		d.current = d.cfg.Ambient
	}
}

// Telemetry returns what the next status frame would report
func (d *Device) Telemetry() lockproto.Telemetry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.telemetryLocked()
}

// CommandsApplied returns the number of commands accepted so far
func (d *Device) CommandsApplied() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commandsRun
}

func (d *Device) telemetryLocked() lockproto.Telemetry {
	var locks lockproto.LockStates
	for i, remaining := range d.lockTimers {
		locks[i] = remaining > 0
	}
	system := lockproto.SystemStopped
	switch d.compressor {
	case lockproto.CompressorPreStart:
		system = lockproto.SystemPreStart
	case lockproto.CompressorOn:
		system = lockproto.SystemRunning
	}
	return lockproto.Telemetry{
		Address:            d.cfg.Address,
		Deviation:          d.cfg.Deviation,
		DeviceCode:         d.cfg.DeviceCode,
		SystemStatus:       system,
		CompressorStatus:   d.compressor,
		SetPoint:           d.cfg.SetPoint,
		CurrentTemperature: d.current,
		Locks:              locks,
	}
}

// Run serves the device on ch until ctx is cancelled or the channel fails.
// Telemetry is pushed every interval; commands are answered as they arrive.
func (d *Device) Run(ctx context.Context, ch transport.Channel, interval time.Duration) error {
	telemetry := time.NewTicker(interval)
	defer telemetry.Stop()
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()

	d.logger.Info("Simulator running", zap.Uint8("address", d.Telemetry().Address), zap.Duration("interval", interval))

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case <-telemetry.C:
			err = d.pushTelemetry(ch)
		case <-poll.C:
			err = d.serveCommand(ch)
		}
		if err != nil {
			if ctx.Err() != nil {
				// Channel torn down during shutdown
				return nil
			}
			return err
		}
	}
}

func (d *Device) pushTelemetry(ch transport.Channel) error {
	frame, err := d.Tick()
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	if _, err := ch.Write(frame); err != nil {
		return &transport.ChannelError{Op: "write", Err: err}
	}
	return nil
}

func (d *Device) serveCommand(ch transport.Channel) error {
	buf, err := readBurst(ch)
	if err != nil {
		return &transport.ChannelError{Op: "read", Err: err}
	}

	for _, frame := range lockproto.SplitFrames(buf) {
		reply, err := d.HandleFrame(frame)
		if err != nil {
			if errors.Is(err, lockproto.ErrCRCMismatch) {
				d.logger.Warn("Dropping corrupt command", zap.Error(err))
			} else {
				d.logger.Warn("Rejecting command", zap.Error(err))
			}
			continue
		}
		if reply == nil {
			continue
		}
		if _, err := ch.Write(reply); err != nil {
			return &transport.ChannelError{Op: "write", Err: err}
		}
	}
	return nil
}

// readBurst waits briefly for a complete command and reads it
func readBurst(ch transport.Channel) ([]byte, error) {
	n, err := ch.Buffered()
	if err != nil || n == 0 {
		return nil, err
	}
	time.Sleep(20 * time.Millisecond)
	return transport.ReadBuffered(ch)
}
