// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

// OpenChannel opens either a serial or WebSocket channel based on config.
// The second return value describes the connection for banners.
func OpenChannel() (transport.Channel, string, error) {
	if err := cfg.ValidateTransport(); err != nil {
		return nil, "", err
	}

	if cfg.Bridge.URL != "" {
		password, err := bridgePassword()
		if err != nil {
			return nil, "", err
		}

		ch, err := transport.OpenWebSocket(transport.BridgeConfig{
			URL:           cfg.Bridge.URL,
			Username:      cfg.Bridge.Username,
			Password:      password,
			SkipSSLVerify: cfg.Bridge.NoSSLVerify,
			ReadTimeout:   cfg.Serial.ReadTimeout,
		})
		if err != nil {
			return nil, "", err
		}
		return ch, fmt.Sprintf("WebSocket: %s", cfg.Bridge.URL), nil
	}

	ch, err := transport.OpenSerial(transport.SerialConfig{
		Port:        cfg.Serial.Port,
		BaudRate:    cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	})
	if err != nil {
		return nil, "", err
	}
	return ch, fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud), nil
}

// cachedPassword is prompted for once so reconnects stay non-interactive
var cachedPassword *string

func bridgePassword() (string, error) {
	if cfg.Bridge.Username == "" {
		return "", nil
	}
	if cachedPassword != nil {
		return *cachedPassword, nil
	}
	password, err := transport.GetPassword()
	if err != nil {
		return "", err
	}
	cachedPassword = &password
	return password, nil
}

// describeConnection returns the banner text without opening anything
func describeConnection() string {
	if cfg.Bridge.URL != "" {
		return fmt.Sprintf("WebSocket: %s", cfg.Bridge.URL)
	}
	return fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud)
}

// newController builds a controller whose Connect opens a fresh channel
func newController() (*controller.Controller, error) {
	if err := cfg.ValidateTransport(); err != nil {
		return nil, err
	}
	// Prompt now, before any TUI owns the terminal
	if _, err := bridgePassword(); err != nil {
		return nil, err
	}

	ctrlCfg := controller.Config{
		Address:        uint8(cfg.Device.Address),
		AutoCompressor: cfg.Device.AutoCompressor,
		PollInterval:   cfg.Listener.PollInterval,
		SettleDelay:    cfg.Listener.SettleDelay,
		StopTimeout:    cfg.Listener.StopTimeout,
	}
	open := func() (transport.Channel, error) {
		ch, _, err := OpenChannel()
		return ch, err
	}
	return controller.New(open, ctrlCfg, logger), nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// readBursts feeds fn every buffer that arrives on ch, using the same
// poll-then-settle framing as the controller's listener. It returns nil
// when ctx ends and the channel error otherwise.
func readBursts(ctx context.Context, ch transport.Channel, fn func([]byte)) error {
	poll := cfg.Listener.PollInterval
	settle := cfg.Listener.SettleDelay

	for ctx.Err() == nil {
		n, err := ch.Buffered()
		if err != nil {
			return err
		}
		if n == 0 {
			sleep(ctx, poll)
			continue
		}

		sleep(ctx, settle)
		buf, err := transport.ReadBuffered(ch)
		if err != nil {
			return err
		}
		if len(buf) > 0 {
			fn(buf)
		}
	}
	return nil
}

// readFrames is readBursts with each buffer split into frames
func readFrames(ctx context.Context, ch transport.Channel, fn func([]byte)) error {
	return readBursts(ctx, ch, func(buf []byte) {
		for _, frame := range lockproto.SplitFrames(buf) {
			fn(frame)
		}
	})
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
