// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lockproto

import "fmt"

// Command is a fully validated command ready to be framed
type Command struct {
	Length    uint8
	Function  uint8
	Broadcast bool
	Payload   []byte
}

// Frame builds the wire bytes for the command. Broadcast commands ignore
// address and go to AddressBroadcast.
func (c Command) Frame(seq, address uint8) []byte {
	if c.Broadcast {
		address = AddressBroadcast
	}
	return BuildFrame(c.Length, seq, address, c.Function, c.Payload)
}

// Name returns the human-readable command name
func (c Command) Name() string {
	return FormatFunction(c.Function)
}

// NewSetTemperature builds a set-point command; the value must lie in 0-63
func NewSetTemperature(celsius float64) (Command, error) {
	b, err := EncodeSetPoint(celsius)
	if err != nil {
		return Command{}, err
	}
	return Command{Length: LengthSetTemperature, Function: FuncSetTemperature, Payload: []byte{b}}, nil
}

// NewOpenLocks builds an open command for the given 1-based lock numbers.
// Locks 11 and 12 cannot be addressed and are dropped.
func NewOpenLocks(locks []int) Command {
	return Command{Length: LengthOpenLocks, Function: FuncOpenLocks, Payload: maskBytes(EncodeOpenMask(locks))}
}

// NewCompressor builds a manual compressor start or stop command
func NewCompressor(start bool) Command {
	var b byte
	if start {
		b = 0x01
	}
	return Command{Length: LengthCompressor, Function: FuncCompressor, Payload: []byte{b}}
}

// NewSetDeviation builds a hysteresis deviation command (0-255)
func NewSetDeviation(deviation int) (Command, error) {
	if deviation < 0 || deviation > 255 {
		return Command{}, &ValidationError{Field: "deviation", Value: deviation, Message: "must be within 0-255"}
	}
	return Command{Length: LengthSetDeviation, Function: FuncSetDeviation, Payload: []byte{byte(deviation)}}, nil
}

// SystemParameters configures an appliance over the broadcast address.
// A nil field is treated as absent.
type SystemParameters struct {
	DeviceCode      *DeviceCode
	Address         *uint8
	UploadInterval  *uint8
	CompressorDelay *uint8
	Temperature     *float64
	Deviation       *uint8
}

// Validate reports the first absent or out-of-range field
func (p SystemParameters) Validate() error {
	switch {
	case p.DeviceCode == nil:
		return &ValidationError{Field: "device_code", Message: "required"}
	case p.Address == nil:
		return &ValidationError{Field: "address", Message: "required"}
	case p.UploadInterval == nil:
		return &ValidationError{Field: "upload_interval", Message: "required"}
	case p.CompressorDelay == nil:
		return &ValidationError{Field: "compressor_delay", Message: "required"}
	case p.Temperature == nil:
		return &ValidationError{Field: "temperature", Message: "required"}
	case p.Deviation == nil:
		return &ValidationError{Field: "deviation", Message: "required"}
	}
	if *p.Address < AddressMin || *p.Address > AddressMax {
		return &ValidationError{Field: "address", Value: *p.Address, Message: fmt.Sprintf("must be within %d-%d", AddressMin, AddressMax)}
	}
	return nil
}

// NewSystemParameters builds the 18-byte broadcast configuration command:
//
//	code[5] | address | 00 | interval | delay | 00 00 | temperature | deviation | FF FF FF FF | 00
//
// The temperature is encoded as a whole number of degrees.
func NewSystemParameters(p SystemParameters) (Command, error) {
	if err := p.Validate(); err != nil {
		return Command{}, err
	}
	if *p.Temperature < 0 || *p.Temperature > TemperatureMagnitudeMax {
		return Command{}, &ValidationError{Field: "temperature", Value: *p.Temperature, Message: "must be within 0-63"}
	}

	payload := make([]byte, 0, systemParamsPayloadSz)
	payload = append(payload, p.DeviceCode[:]...)
	payload = append(payload, *p.Address, 0x00, *p.UploadInterval, *p.CompressorDelay, 0x00, 0x00)
	payload = append(payload, byte(int(*p.Temperature))<<1, *p.Deviation)
	payload = append(payload, 0xFF, 0xFF, 0xFF, 0xFF, 0x00)

	return Command{
		Length:    LengthSystemParameters,
		Function:  FuncSystemParameters,
		Broadcast: true,
		Payload:   payload,
	}, nil
}

// DecodedCommand is the appliance-side view of a received command frame
type DecodedCommand struct {
	Function        uint8
	Sequence        uint8
	Address         uint8
	SetPoint        float64
	Deviation       uint8
	Locks           []int
	CompressorStart bool
	Parameters      *SystemParameters
}

// DecodeCommand interprets a verified command frame. A payload whose length
// does not match the function code returns a DecodeError.
func DecodeCommand(f *Frame) (*DecodedCommand, error) {
	d := &DecodedCommand{Function: f.Function, Sequence: f.Sequence, Address: f.Address}

	want := map[uint8]int{
		FuncCompressor:       1,
		FuncOpenLocks:        2,
		FuncSetTemperature:   1,
		FuncSetDeviation:     1,
		FuncSystemParameters: systemParamsPayloadSz,
	}
	n, known := want[f.Function]
	if !known {
		return nil, &DecodeError{Length: f.Size(), Function: f.Function, Message: "unknown command function"}
	}
	if len(f.Payload) != n {
		return nil, &DecodeError{
			Length:   f.Size(),
			Function: f.Function,
			Message:  fmt.Sprintf("payload is %d bytes, want %d", len(f.Payload), n),
		}
	}

	switch f.Function {
	case FuncCompressor:
		d.CompressorStart = f.Payload[0] == 0x01
	case FuncOpenLocks:
		d.Locks = DecodeLockMask(maskFromBytes(f.Payload)).Open()
	case FuncSetTemperature:
		d.SetPoint = DecodeTemperature(f.Payload[0])
	case FuncSetDeviation:
		d.Deviation = f.Payload[0]
	case FuncSystemParameters:
		d.Parameters = decodeSystemParameters(f.Payload)
	}
	return d, nil
}

func decodeSystemParameters(b []byte) *SystemParameters {
	var code DeviceCode
	copy(code[:], b[:DeviceCodeSize])
	addr, interval, delay, dev := b[5], b[7], b[8], b[12]
	temp := DecodeTemperature(b[11])
	return &SystemParameters{
		DeviceCode:      &code,
		Address:         &addr,
		UploadInterval:  &interval,
		CompressorDelay: &delay,
		Temperature:     &temp,
		Deviation:       &dev,
	}
}
