// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import "math"

// Temperature byte layout: sign(1) | magnitude(6) | half-degree(1)
const (
	tempSignBit  = 0x80
	tempMagMask  = 0x7E
	tempHalfFlag = 0x01
)

// EncodeTemperature packs a signed half-degree value into one byte.
// The magnitude is truncated to an integer and the half-degree flag is set
// when the fractional remainder is at least 0.5.
func EncodeTemperature(celsius float64) (byte, error) {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return 0, &ValidationError{Field: "temperature", Value: celsius, Message: "not a finite number"}
	}

	abs := math.Abs(celsius)
	mag := math.Floor(abs)
	if mag > TemperatureMagnitudeMax {
		return 0, &ValidationError{Field: "temperature", Value: celsius, Message: "magnitude exceeds 63"}
	}

	b := byte(mag) << 1
	if abs-mag >= 0.5 {
		b |= tempHalfFlag
	}
	if celsius < 0 && b != 0 {
		b |= tempSignBit
	}
	return b, nil
}

// EncodeSetPoint encodes a set-point for a direct temperature command.
// Only 0 through 63 is accepted; no sign is ever encoded and any non-zero
// fraction sets the half-degree flag.
func EncodeSetPoint(celsius float64) (byte, error) {
	if math.IsNaN(celsius) || celsius < SetPointMin || celsius > SetPointMax {
		return 0, &ValidationError{Field: "temperature", Value: celsius, Message: "set point must be within 0-63"}
	}

	mag := math.Floor(celsius)
	b := byte(mag) << 1
	if celsius-mag != 0 {
		b |= tempHalfFlag
	}
	return b, nil
}

// DecodeTemperature is the inverse of EncodeTemperature
func DecodeTemperature(b byte) float64 {
	v := float64((b & tempMagMask) >> 1)
	if b&tempHalfFlag != 0 {
		v += 0.5
	}
	if b&tempSignBit != 0 {
		v = -v
	}
	return v
}
