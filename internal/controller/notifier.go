// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"fmt"

	"github.com/Thermoquad/frostlock/pkg/lockproto"
	"go.uber.org/zap"
)

// Notifier receives a full snapshot after every decoded telemetry frame.
// Implementations must return quickly; calls are neither queued nor retried.
type Notifier interface {
	Notify(State) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(State) error

// Notify calls f(s)
func (f NotifierFunc) Notify(s State) error {
	return f(s)
}

// Observer is told about protocol events, for metrics
type Observer interface {
	FrameReceived(kind lockproto.Kind)
	FrameRejected(err error)
	CommandSent(function uint8, err error)
	AutoControl(start bool)
	ConnectionChanged(connected bool)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(lockproto.Kind) {}
func (nopObserver) FrameRejected(error)          {}
func (nopObserver) CommandSent(uint8, error)     {}
func (nopObserver) AutoControl(bool)             {}
func (nopObserver) ConnectionChanged(bool)       {}

// safeNotify invokes n and turns both errors and panics into log entries
func safeNotify(n Notifier, s State, logger *zap.Logger) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Update notifier panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := n.Notify(s); err != nil {
		logger.Error("Update notifier failed", zap.Error(err))
	}
}

// Notifiers fans a snapshot out to several notifiers. Every notifier is
// called; the first error is returned.
type Notifiers []Notifier

// Notify calls each notifier in order
func (ns Notifiers) Notify(s State) error {
	var first error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
