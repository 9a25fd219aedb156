// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller drives one locker appliance: it owns the channel,
// runs the background listener that keeps State current, and exposes the
// command API.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by commands issued without a channel
var ErrNotConnected = errors.New("controller not connected")

// Opener creates a fresh channel for each Connect
type Opener func() (transport.Channel, error)

// Config holds controller tuning
type Config struct {
	Address        uint8
	AutoCompressor bool
	PollInterval   time.Duration
	SettleDelay    time.Duration
	StopTimeout    time.Duration
}

// DefaultConfig returns the settings used against real hardware
func DefaultConfig() Config {
	return Config{
		Address:      1,
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  100 * time.Millisecond,
		StopTimeout:  time.Second,
	}
}

// Controller is safe for concurrent use
type Controller struct {
	cfg    Config
	open   Opener
	logger *zap.Logger
	state  store
	seq    lockproto.Sequencer

	// lifeMu serializes Connect and Disconnect end to end
	lifeMu sync.Mutex

	mu       sync.Mutex
	ch       transport.Channel
	listener *listener
	cancel   context.CancelFunc
	notifier Notifier
	observer Observer

	// writeMu keeps sequence order equal to wire order
	writeMu sync.Mutex

	statsMu sync.Mutex
	stats   *lockproto.Statistics
}

// New creates a disconnected controller
func New(open Opener, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Address == 0 {
		cfg.Address = def.Address
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}

	c := &Controller{
		cfg:      cfg,
		open:     open,
		logger:   logger.Named("controller"),
		observer: nopObserver{},
		stats:    lockproto.NewStatistics(),
	}
	c.state.state = defaultState(cfg.Address, cfg.AutoCompressor)
	return c
}

// SetNotifier installs the sink invoked after every telemetry frame
func (c *Controller) SetNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = n
}

// SetObserver installs the protocol event observer
func (c *Controller) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	c.observer = o
}

// Connect opens the channel and starts the listener. It is a no-op while a
// listener is running. A listener that stopped on a channel error leaves
// its channel open; Connect closes it before opening a new one.
func (c *Controller) Connect() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener != nil && c.listener.State() != ListenerStopped {
		return nil
	}
	if c.ch != nil {
		c.ch.Close()
		c.ch = nil
	}

	ch, err := c.open()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	session := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	l := newListener(ch, c.cfg, c.logger.Named("listener"), c.handleBuffer, c.handleFatal)

	c.ch = ch
	c.listener = l
	c.cancel = cancel
	c.state.update(func(s *State) {
		s.Connected = true
		s.SessionID = session
	})
	c.observer.ConnectionChanged(true)

	go l.run(ctx)

	c.logger.Info("Connected", zap.String("session", session), zap.Uint8("address", c.cfg.Address))
	return nil
}

// Disconnect stops the listener, waiting up to the stop timeout, then
// closes the channel whether or not the listener has exited.
func (c *Controller) Disconnect() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	ch, l, cancel := c.ch, c.listener, c.cancel
	c.ch, c.listener, c.cancel = nil, nil, nil
	c.mu.Unlock()

	if ch == nil {
		return nil
	}

	if cancel != nil {
		cancel()
	}
	if l != nil {
		select {
		case <-l.done:
		case <-time.After(c.cfg.StopTimeout):
			c.logger.Warn("Listener did not stop in time, closing channel anyway")
		}
	}

	err := ch.Close()
	c.state.update(func(s *State) {
		s.Connected = false
		s.SessionID = ""
	})
	c.observerSnapshot().ConnectionChanged(false)
	c.logger.Info("Disconnected")

	if err != nil {
		return &transport.ChannelError{Op: "close", Err: err}
	}
	return nil
}

// State returns a consistent copy of the current state
func (c *Controller) State() State {
	return c.state.snapshot()
}

// ListenerState reports the background reader's phase
func (c *Controller) ListenerState() ListenerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return ListenerStopped
	}
	return c.listener.State()
}

// Statistics returns a copy of the frame and command counters
func (c *Controller) Statistics() lockproto.Statistics {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.CalculateRates()
	return *c.stats
}

// SetTemperature sets the cabinet set point (0-63, half degrees allowed)
func (c *Controller) SetTemperature(celsius float64) error {
	cmd, err := lockproto.NewSetTemperature(celsius)
	if err != nil {
		return err
	}
	return c.send(cmd)
}

// OpenLocks opens the given 1-based locks. Locks 11 and 12 are accepted but
// cannot be expressed in the open command.
func (c *Controller) OpenLocks(locks []int) error {
	return c.send(lockproto.NewOpenLocks(locks))
}

// ControlCompressorManual disables auto control, then starts or stops the
// compressor
func (c *Controller) ControlCompressorManual(start bool) error {
	c.state.update(func(s *State) { s.AutoCompressor = false })
	return c.send(lockproto.NewCompressor(start))
}

// EnableAutoCompressorControl flips the auto-control flag; nothing is sent
func (c *Controller) EnableAutoCompressorControl(enable bool) {
	c.state.update(func(s *State) { s.AutoCompressor = enable })
	c.logger.Info("Auto compressor control", zap.Bool("enabled", enable))
}

// SetSystemParameters broadcasts a configuration command. On a successful
// write the configured values are recorded in State. The controller keeps
// addressing its configured Address; a cabinet moved to a new address needs
// a controller configured for it.
func (c *Controller) SetSystemParameters(p lockproto.SystemParameters) error {
	cmd, err := lockproto.NewSystemParameters(p)
	if err != nil {
		return err
	}
	if err := c.send(cmd); err != nil {
		return err
	}

	c.state.update(func(s *State) {
		s.DeviceCode = *p.DeviceCode
		s.Address = *p.Address
		s.UploadInterval = *p.UploadInterval
		s.CompressorDelay = *p.CompressorDelay
	})
	return nil
}

// SetTemperatureDeviation sets the hysteresis band (0-255)
func (c *Controller) SetTemperatureDeviation(deviation int) error {
	cmd, err := lockproto.NewSetDeviation(deviation)
	if err != nil {
		return err
	}
	return c.send(cmd)
}

// send frames cmd with the next sequence number and writes it
func (c *Controller) send(cmd lockproto.Command) error {
	c.mu.Lock()
	ch := c.ch
	observer := c.observer
	c.mu.Unlock()

	if ch == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	frame := cmd.Frame(c.seq.Next(), c.cfg.Address)
	_, err := ch.Write(frame)
	c.writeMu.Unlock()

	c.statsMu.Lock()
	c.stats.RecordCommand(err)
	c.statsMu.Unlock()
	observer.CommandSent(cmd.Function, err)

	if err != nil {
		c.logger.Error("Command write failed", zap.String("command", cmd.Name()), zap.Error(err))
		return &transport.ChannelError{Op: "write", Err: err}
	}

	c.logger.Info("Sent command",
		zap.String("command", cmd.Name()),
		zap.String("frame", lockproto.FormatHex(frame)))
	return nil
}

// handleBuffer is the listener's decode step
func (c *Controller) handleBuffer(buf []byte) {
	c.logger.Debug("Received", zap.String("data", lockproto.FormatHex(buf)))

	msg, err := lockproto.Parse(buf)
	var anomalies []lockproto.Anomaly
	if err == nil && msg.Kind == lockproto.KindTelemetry {
		anomalies = lockproto.ValidateTelemetry(msg.Telemetry)
	}

	c.statsMu.Lock()
	c.stats.Update(msg, err, anomalies)
	c.statsMu.Unlock()

	observer := c.observerSnapshot()
	if err != nil {
		observer.FrameRejected(err)
		if errors.Is(err, lockproto.ErrCRCMismatch) {
			c.logger.Warn("Discarding corrupt frame", zap.Error(err), zap.String("data", lockproto.FormatHex(buf)))
		} else {
			c.logger.Warn("Discarding undecodable frame", zap.Error(err))
		}
		return
	}
	observer.FrameReceived(msg.Kind)

	switch msg.Kind {
	case lockproto.KindAck:
		c.logger.Debug("Acknowledged",
			zap.String("command", lockproto.FormatFunction(msg.Ack.Function)),
			zap.Uint8("seq", msg.Ack.AckedSequence))
		return
	case lockproto.KindUnknown:
		c.logger.Debug("Ignoring frame", zap.Int("length", len(buf)))
		return
	}

	for _, a := range anomalies {
		c.logger.Warn("Telemetry anomaly", zap.Stringer("type", a.Type), zap.String("detail", a.Message))
	}

	snap := c.state.update(func(s *State) { s.applyTelemetry(msg.Telemetry, msg.Received) })

	if snap.AutoCompressor {
		c.runAutoControl(snap)
	}

	c.mu.Lock()
	n := c.notifier
	c.mu.Unlock()
	safeNotify(n, snap, c.logger)
}

// handleFatal runs when the listener stops on a read error. The connected
// flag is left as it is; a fresh Connect is required.
func (c *Controller) handleFatal(err error) {
	c.logger.Error("Listener stopped, reconnect required", zap.Error(err))
}

func (c *Controller) observerSnapshot() Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observer
}
