// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"github.com/Thermoquad/frostlock/pkg/lockproto"
	"go.uber.org/zap"
)

// Action is the outcome of one hysteresis evaluation
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	default:
		return "none"
	}
}

// Decide applies the on-above/off-below rule around the set point. Inside
// the band nothing is done; a command may repeat what the compressor is
// already doing.
func Decide(current, setPoint float64, deviation uint8) Action {
	band := float64(deviation)
	switch {
	case current > setPoint+band:
		return ActionStart
	case current < setPoint-band:
		return ActionStop
	default:
		return ActionNone
	}
}

// runAutoControl evaluates a fresh snapshot and issues the compressor
// command it calls for. It does not touch the auto flag.
func (c *Controller) runAutoControl(s State) {
	action := Decide(s.CurrentTemperature, s.SetPoint, s.Deviation)
	if action == ActionNone {
		return
	}

	start := action == ActionStart
	c.logger.Info("Auto control",
		zap.Stringer("action", action),
		zap.Float64("current", s.CurrentTemperature),
		zap.Float64("set_point", s.SetPoint),
		zap.Uint8("deviation", s.Deviation))
	c.observerSnapshot().AutoControl(start)

	if err := c.send(lockproto.NewCompressor(start)); err != nil {
		c.logger.Error("Auto control command failed", zap.Error(err))
	}
}
