// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
	"go.uber.org/zap"
)

// ListenerState is the phase of the background reader
type ListenerState int32

const (
	ListenerIdle ListenerState = iota
	ListenerAccumulating
	ListenerDecoding
	ListenerStopped
)

func (s ListenerState) String() string {
	switch s {
	case ListenerIdle:
		return "Idle"
	case ListenerAccumulating:
		return "Accumulating"
	case ListenerDecoding:
		return "Decoding"
	default:
		return "Stopped"
	}
}

// listener polls a channel, splits each settled burst into frames and hands
// them to handle one at a time.
// Any channel error stops it for good.
type listener struct {
	ch     transport.Channel
	logger *zap.Logger

	pollInterval time.Duration
	settleDelay  time.Duration

	handle  func([]byte)
	onFatal func(error)

	state atomic.Int32
	done  chan struct{}
}

func newListener(ch transport.Channel, cfg Config, logger *zap.Logger, handle func([]byte), onFatal func(error)) *listener {
	return &listener{
		ch:           ch,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		settleDelay:  cfg.SettleDelay,
		handle:       handle,
		onFatal:      onFatal,
		done:         make(chan struct{}),
	}
}

func (l *listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

func (l *listener) setState(s ListenerState) {
	l.state.Store(int32(s))
}

func (l *listener) run(ctx context.Context) {
	defer close(l.done)
	defer l.setState(ListenerStopped)

	l.logger.Debug("Listener started")
	for {
		if ctx.Err() != nil {
			l.logger.Debug("Listener stopped on request")
			return
		}

		l.setState(ListenerIdle)
		pending, err := l.ch.Buffered()
		if err != nil {
			l.fail(ctx, err)
			return
		}
		if pending == 0 {
			sleepCtx(ctx, l.pollInterval)
			continue
		}

		// Give the rest of the frame time to arrive
		l.setState(ListenerAccumulating)
		if !sleepCtx(ctx, l.settleDelay) {
			continue
		}

		buf, err := transport.ReadBuffered(l.ch)
		if err != nil {
			l.fail(ctx, err)
			return
		}
		if len(buf) == 0 {
			continue
		}

		l.setState(ListenerDecoding)
		for _, frame := range lockproto.SplitFrames(buf) {
			l.handle(frame)
		}
	}
}

func (l *listener) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		// Channel closed underneath us by Disconnect
		return
	}
	l.logger.Error("Listener stopped on channel error", zap.Error(err))
	if l.onFatal != nil {
		l.onFatal(&transport.ChannelError{Op: "read", Err: err})
	}
}

// sleepCtx waits for d and reports whether it ran to completion
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
