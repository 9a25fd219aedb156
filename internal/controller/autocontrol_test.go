// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		setPoint  float64
		deviation uint8
		want      Action
	}{
		{"above band", 7, 4, 2, ActionStart},
		{"below band", 1, 4, 2, ActionStop},
		{"at set point", 4, 4, 2, ActionNone},
		{"upper edge is inside", 6, 4, 2, ActionNone},
		{"lower edge is inside", 2, 4, 2, ActionNone},
		{"just above upper edge", 6.5, 4, 2, ActionStart},
		{"just below lower edge", 1.5, 4, 2, ActionStop},
		{"zero band above", 4.5, 4, 0, ActionStart},
		{"zero band exact", 4, 4, 0, ActionNone},
		{"negative temperatures", -3, 0, 2, ActionStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.current, tt.setPoint, tt.deviation))
		})
	}
}
