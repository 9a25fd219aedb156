// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import "testing"

func TestEncodeOpenMask(t *testing.T) {
	tests := []struct {
		name  string
		locks []int
		want  uint16
	}{
		{"none", nil, 0x0000},
		{"lock 1", []int{1}, 0x0001},
		{"locks 1 and 6", []int{1, 6}, 0x0021},
		{"lock 10 is the last encodable", []int{10}, 0x0200},
		// Locks 11 and 12 report in telemetry but cannot be opened
		{"locks 11 and 12 dropped", []int{11, 12}, 0x0000},
		{"lock 12 dropped alongside lock 1", []int{1, 12}, 0x0001},
		{"zero and negative dropped", []int{0, -3}, 0x0000},
		{"duplicates", []int{2, 2}, 0x0002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeOpenMask(tt.locks); got != tt.want {
				t.Errorf("EncodeOpenMask(%v) = 0x%04X, want 0x%04X", tt.locks, got, tt.want)
			}
		})
	}
}

func TestMaskBytesAreSwapped(t *testing.T) {
	b := maskBytes(0x0021)
	if b[0] != 0x21 || b[1] != 0x00 {
		t.Errorf("maskBytes(0x0021) = % X, want 21 00", b)
	}
	if got := maskFromBytes([]byte{0x00, 0x08}); got != 0x0800 {
		t.Errorf("maskFromBytes(00 08) = 0x%04X, want 0x0800", got)
	}
}

func TestLockMaskRoundTrip(t *testing.T) {
	states := DecodeLockMask(EncodeOpenMask([]int{1, 6}))
	want := LockStates{true, false, false, false, false, true, false, false, false, false, false, false}
	if states != want {
		t.Errorf("DecodeLockMask(EncodeOpenMask({1,6})) = %v, want %v", states, want)
	}
	if got := states.Open(); len(got) != 2 || got[0] != 1 || got[1] != 6 {
		t.Errorf("Open() = %v, want [1 6]", got)
	}
}

func TestDecodeLockMaskAllTwelve(t *testing.T) {
	states := DecodeLockMask(0xFFFF)
	for i, v := range states {
		if !v {
			t.Errorf("lock %d closed, want open", i+1)
		}
	}
	if got := EncodeLockMask(states); got != 0x0FFF {
		t.Errorf("EncodeLockMask(all open) = 0x%04X, want 0x0FFF", got)
	}
	if s := states.String(); s != "111111111111" {
		t.Errorf("String() = %q", s)
	}
}
