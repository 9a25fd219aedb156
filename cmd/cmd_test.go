// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/frostlock/internal/config"
	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

func useTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{Listener: config.ListenerConfig{
		PollInterval: 5 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
		StopTimeout:  time.Second,
	}}
	t.Cleanup(func() { cfg = prev })
}

func telemetryFrame(t *testing.T, address uint8, code lockproto.DeviceCode) []byte {
	t.Helper()
	frame, err := lockproto.EncodeTelemetry(1, &lockproto.Telemetry{
		Address:            address,
		Deviation:          2,
		DeviceCode:         code,
		SystemStatus:       lockproto.SystemRunning,
		CompressorStatus:   lockproto.CompressorOn,
		SetPoint:           4,
		CurrentTemperature: 6.5,
	})
	require.NoError(t, err)
	return frame
}

func TestSyncTrackerSkipsNoiseUntilFirstValidFrame(t *testing.T) {
	var tracker syncTracker

	count, synced := tracker.observe(frameResult{raw: []byte{1, 2, 3}, err: errors.New("noise")})
	assert.False(t, count)
	assert.False(t, synced)

	count, synced = tracker.observe(frameResult{raw: make([]byte, 44)})
	assert.True(t, count)
	assert.True(t, synced)
	assert.Equal(t, 3, tracker.skipped)

	count, synced = tracker.observe(frameResult{raw: []byte{9}, err: errors.New("bad crc")})
	assert.True(t, count, "errors after sync are counted")
	assert.False(t, synced)
	assert.Equal(t, 3, tracker.skipped)
}

func TestClassifyTelemetry(t *testing.T) {
	r := classify(telemetryFrame(t, 1, lockproto.DeviceCode{1, 2, 3, 4, 5}))
	require.NoError(t, r.err)
	assert.Equal(t, lockproto.KindTelemetry, r.msg.Kind)
	assert.Empty(t, r.anomalies)

	r = classify([]byte{0xFF, 0xFF, 0x00})
	assert.Error(t, r.err)
}

func TestEventLogKeepsNewest(t *testing.T) {
	log := newEventLog(3)
	for i := range 5 {
		log.add(fmt.Sprintf("event %d", i), i%2 == 0)
	}

	require.Len(t, log.entries, 3)
	assert.Equal(t, "event 2", log.entries[0].message)

	tail := log.tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "event 3", tail[0].message)
	assert.Equal(t, "event 4", tail[1].message)
	assert.Len(t, log.tail(10), 3)
}

func TestParseLockList(t *testing.T) {
	locks, err := parseLockList("1, 6,10")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6, 10}, locks)

	_, err = parseLockList("1,x")
	assert.Error(t, err)

	_, err = parseLockList(" , ")
	assert.Error(t, err)
}

func TestCabinetSetDeduplicates(t *testing.T) {
	set := newCabinetSet()
	a := &lockproto.Telemetry{Address: 1, DeviceCode: lockproto.DeviceCode{1, 1, 1, 1, 1}}
	b := &lockproto.Telemetry{Address: 2, DeviceCode: lockproto.DeviceCode{2, 2, 2, 2, 2}}

	assert.True(t, set.add(a, time.Now()))
	assert.False(t, set.add(a, time.Now()))
	assert.True(t, set.add(b, time.Now()))

	require.Equal(t, 2, set.len())
	assert.Equal(t, uint8(1), set.order[0].address)
	assert.Equal(t, 2, set.order[0].frames)
	assert.Equal(t, 1, set.order[1].frames)
}

func TestPrintPorts(t *testing.T) {
	var out bytes.Buffer
	printPorts(&out, []string{"/dev/ttyUSB0", "/dev/ttyACM1"})
	assert.Equal(t, "Serial ports:\n  /dev/ttyUSB0\n  /dev/ttyACM1\n", out.String())

	out.Reset()
	printPorts(&out, nil)
	assert.Equal(t, "No serial ports found\n", out.String())
}

func TestDiscoveryListSkipsConnection(t *testing.T) {
	useTestConfig(t)
	discoveryList = true
	t.Cleanup(func() { discoveryList = false })

	var out bytes.Buffer
	discoveryCmd.SetOut(&out)
	t.Cleanup(func() { discoveryCmd.SetOut(nil) })

	// No port or URL is configured, so opening a channel would fail
	err := runDiscovery(discoveryCmd, nil)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		assert.Contains(t, exitErr.Error(), "list ports", "only port enumeration may fail")
		return
	}
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "Connection:")
}

func TestReadBurstsDeliversSettledBuffers(t *testing.T) {
	useTestConfig(t)
	local, remote := transport.Pipe(50 * time.Millisecond)
	defer local.Close()
	defer remote.Close()

	frame := telemetryFrame(t, 3, lockproto.DeviceCode{9, 8, 7, 6, 5})
	go func() { _, _ = remote.Write(frame) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []byte
	err := readBursts(ctx, local, func(buf []byte) {
		got = buf
		cancel()
	})
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestReadFramesSplitsMergedBuffer(t *testing.T) {
	useTestConfig(t)
	local, remote := transport.Pipe(50 * time.Millisecond)
	defer local.Close()
	defer remote.Close()

	first := telemetryFrame(t, 3, lockproto.DeviceCode{9, 8, 7, 6, 5})
	second := telemetryFrame(t, 4, lockproto.DeviceCode{1, 2, 3, 4, 5})
	go func() { _, _ = remote.Write(append(append([]byte{}, first...), second...)) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got [][]byte
	err := readFrames(ctx, local, func(frame []byte) {
		got = append(got, append([]byte{}, frame...))
		if len(got) == 2 {
			cancel()
		}
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])
}

func TestReadBurstsReturnsChannelError(t *testing.T) {
	useTestConfig(t)
	local, remote := transport.Pipe(50 * time.Millisecond)
	require.NoError(t, local.Close())
	defer remote.Close()

	err := readBursts(context.Background(), local, func([]byte) {})
	assert.Error(t, err)
}

func TestWatchLinkCountsBuffers(t *testing.T) {
	useTestConfig(t)
	local, remote := transport.Pipe(50 * time.Millisecond)
	defer local.Close()
	defer remote.Close()

	go func() { _, _ = remote.Write([]byte{0xFF, 0xFF, 0x01}) }()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	counters, err := watchLink(ctx, &out, local)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.buffers)
	assert.Equal(t, 3, counters.bytes)
	assert.Contains(t, out.String(), "FF FF 01")
}

func TestPrintBufferFallsBackToHex(t *testing.T) {
	var out bytes.Buffer
	printBuffer(&out, []byte{0xAA, 0xBB})
	assert.Contains(t, out.String(), "AA BB")
}

// fakeLocker records the commands the monitor issues
type fakeLocker struct {
	state      controller.State
	listener   controller.ListenerState
	connectErr error
	connects   int
	calls      []string
}

func (f *fakeLocker) Connect() error {
	f.connects++
	return f.connectErr
}
func (f *fakeLocker) State() controller.State                 { return f.state }
func (f *fakeLocker) ListenerState() controller.ListenerState { return f.listener }
func (f *fakeLocker) Statistics() lockproto.Statistics        { return lockproto.Statistics{} }
func (f *fakeLocker) SetTemperature(c float64) error {
	f.calls = append(f.calls, fmt.Sprintf("temp %.1f", c))
	return nil
}
func (f *fakeLocker) SetTemperatureDeviation(d int) error {
	f.calls = append(f.calls, fmt.Sprintf("deviation %d", d))
	return nil
}
func (f *fakeLocker) OpenLocks(locks []int) error {
	f.calls = append(f.calls, fmt.Sprintf("open %v", locks))
	return nil
}
func (f *fakeLocker) ControlCompressorManual(start bool) error {
	f.calls = append(f.calls, fmt.Sprintf("compressor %t", start))
	return nil
}
func (f *fakeLocker) EnableAutoCompressorControl(enable bool) {
	f.state.AutoCompressor = enable
	f.calls = append(f.calls, fmt.Sprintf("auto %t", enable))
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m monitorModel, msg tea.Msg) (monitorModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(monitorModel)
	require.True(t, ok)
	return mm, cmd
}

func TestMonitorSetTemperatureFlow(t *testing.T) {
	fake := &fakeLocker{}
	m := initialMonitorModel(fake, "test")

	m, _ = update(t, m, key("enter"))
	require.Equal(t, focusInput, m.focusedField)

	m, _ = update(t, m, key("5"))
	m, _ = update(t, m, key(".5"))
	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, focusActions, m.focusedField)

	result, ok := cmd().(commandResultMsg)
	require.True(t, ok)
	require.NoError(t, result.err)
	assert.Equal(t, []string{"temp 5.5"}, fake.calls)

	m, _ = update(t, m, result)
	assert.Contains(t, m.log.entries[len(m.log.entries)-1].message, "Set temperature sent")
}

func TestMonitorInvalidValueIsLogged(t *testing.T) {
	fake := &fakeLocker{}
	m := initialMonitorModel(fake, "test")

	m, _ = update(t, m, key("enter"))
	m, _ = update(t, m, key("abc"))
	m, cmd := update(t, m, key("enter"))

	result := cmd().(commandResultMsg)
	require.Error(t, result.err)
	assert.Empty(t, fake.calls)

	m, _ = update(t, m, result)
	last := m.log.entries[len(m.log.entries)-1]
	assert.True(t, last.isError)
}

func TestMonitorActionWithoutValueRunsImmediately(t *testing.T) {
	fake := &fakeLocker{}
	m := initialMonitorModel(fake, "test")
	m.actions.Select(3) // Start compressor

	_, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"compressor true"}, fake.calls)
}

func TestMonitorQuitKeys(t *testing.T) {
	m := initialMonitorModel(&fakeLocker{}, "test")

	m, _ = update(t, m, key("enter"))
	m, _ = update(t, m, key("q"))
	assert.False(t, m.quitting, "q is text while the input is focused")
	assert.Equal(t, "q", m.input.Value())

	m, _ = update(t, m, key("esc"))
	m, cmd := update(t, m, key("q"))
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestMonitorReconnectBackoff(t *testing.T) {
	fake := &fakeLocker{connectErr: errors.New("no port")}
	m := initialMonitorModel(fake, "test")

	m, cmd := update(t, m, monitorTickMsg{listener: controller.ListenerStopped})
	assert.True(t, m.reconnecting)
	assert.NotNil(t, cmd)

	m, cmd = update(t, m, reconnectAttemptMsg{})
	res := cmd().(connectResultMsg)
	assert.Equal(t, 1, fake.connects)

	m, _ = update(t, m, res)
	assert.Equal(t, 2*initialBackoff, m.backoff)
	for range 10 {
		m, _ = update(t, m, res)
	}
	assert.Equal(t, maxBackoff, m.backoff)

	m, _ = update(t, m, connectResultMsg{})
	assert.False(t, m.reconnecting)
	assert.Equal(t, initialBackoff, m.backoff)
}

func TestMonitorViewShowsState(t *testing.T) {
	m := initialMonitorModel(&fakeLocker{}, "Serial: /dev/null @ 38400 baud")
	assert.Contains(t, m.View(), "Waiting for telemetry")

	var locks lockproto.LockStates
	locks[5] = true
	m, _ = update(t, m, stateMsg(controller.State{
		CurrentTemperature: 7.5,
		SetPoint:           4,
		CompressorStatus:   lockproto.CompressorOn,
		SystemStatus:       lockproto.SystemRunning,
		Locks:              locks,
		LastUpdate:         time.Now(),
	}))

	view := m.View()
	assert.Contains(t, view, "7.5°C")
	assert.Contains(t, view, "On")
	assert.True(t, strings.Contains(view, "[6]"))
}
