// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	staleAfter     = 30 * time.Second
)

// Focus states
const (
	focusActions = iota
	focusInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// lockerControl is the part of the controller the TUI drives
type lockerControl interface {
	Connect() error
	State() controller.State
	ListenerState() controller.ListenerState
	Statistics() lockproto.Statistics
	SetTemperature(celsius float64) error
	SetTemperatureDeviation(deviation int) error
	OpenLocks(locks []int) error
	ControlCompressorManual(start bool) error
	EnableAutoCompressorControl(enable bool)
}

// action is one entry in the command list
type action struct {
	name        string
	help        string
	placeholder string // empty when no value is needed
	run         func(c lockerControl, value string) error
}

func (a action) Title() string       { return a.name }
func (a action) Description() string { return a.help }
func (a action) FilterValue() string { return a.name }

func (a action) needsValue() bool { return a.placeholder != "" }

var monitorActions = []action{
	{
		name: "Set temperature", help: "Set point 0-63°C, .5 allowed", placeholder: "4.5",
		run: func(c lockerControl, v string) error {
			t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("not a number: %q", v)
			}
			return c.SetTemperature(t)
		},
	},
	{
		name: "Set deviation", help: "Hysteresis band in °C", placeholder: "2",
		run: func(c lockerControl, v string) error {
			d, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("not an integer: %q", v)
			}
			return c.SetTemperatureDeviation(d)
		},
	},
	{
		name: "Open locks", help: "Comma separated, 1-10", placeholder: "1,6",
		run: func(c lockerControl, v string) error {
			locks, err := parseLockList(v)
			if err != nil {
				return err
			}
			return c.OpenLocks(locks)
		},
	},
	{
		name: "Start compressor", help: "Manual; disables auto control",
		run: func(c lockerControl, _ string) error { return c.ControlCompressorManual(true) },
	},
	{
		name: "Stop compressor", help: "Manual; disables auto control",
		run: func(c lockerControl, _ string) error { return c.ControlCompressorManual(false) },
	},
	{
		name: "Toggle auto control", help: "Hysteresis around the set point",
		run: func(c lockerControl, _ string) error {
			c.EnableAutoCompressorControl(!c.State().AutoCompressor)
			return nil
		},
	},
}

func parseLockList(v string) ([]int, error) {
	var locks []int
	for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("not a lock number: %q", f)
		}
		locks = append(locks, n)
	}
	if len(locks) == 0 {
		return nil, fmt.Errorf("no locks given")
	}
	return locks, nil
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	ctrl     lockerControl
	connInfo string

	// Latest data
	state    controller.State
	hasState bool
	listener controller.ListenerState
	stats    lockproto.Statistics
	log      eventLog

	// Control
	actions      list.Model
	input        textinput.Model
	focusedField int

	// Reconnection
	reconnecting bool
	backoff      time.Duration

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type stateMsg controller.State

type eventMsg struct {
	text    string
	isError bool
}

type monitorTickMsg struct {
	listener controller.ListenerState
	stats    lockproto.Statistics
}

type commandResultMsg struct {
	name string
	err  error
}

type reconnectAttemptMsg struct{}

type connectResultMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(ctrl lockerControl, connInfo string) monitorModel {
	ti := textinput.New()
	ti.CharLimit = 32
	ti.Width = 12

	items := make([]list.Item, len(monitorActions))
	for i, a := range monitorActions {
		items[i] = a
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	actions := list.New(items, delegate, 36, 14)
	actions.Title = "Actions"
	actions.SetShowStatusBar(false)
	actions.SetShowHelp(false)
	actions.SetFilteringEnabled(false)

	return monitorModel{
		ctrl:     ctrl,
		connInfo: connInfo,
		listener: controller.ListenerStopped,
		log:      newEventLog(100),
		actions:  actions,
		input:    ti,
		backoff:  initialBackoff,
		width:    80,
		height:   24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(connectCmd(m.ctrl), monitorTickCmd(m.ctrl))
}

// Controller calls that take its connection lock run inside commands so the
// event loop never blocks on them
func monitorTickCmd(ctrl lockerControl) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return monitorTickMsg{listener: ctrl.ListenerState(), stats: ctrl.Statistics()}
	})
}

func connectCmd(ctrl lockerControl) tea.Cmd {
	return func() tea.Msg {
		return connectResultMsg{err: ctrl.Connect()}
	}
}

func reconnectAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return reconnectAttemptMsg{} })
}

func runActionCmd(ctrl lockerControl, a action, value string) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{name: a.name, err: a.run(ctrl, value)}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.actions.SetHeight(max(8, msg.Height-20))

	case stateMsg:
		m.state = controller.State(msg)
		m.hasState = true

	case eventMsg:
		m.log.add(msg.text, msg.isError)

	case monitorTickMsg:
		m.listener = msg.listener
		m.stats = msg.stats
		m.state.AutoCompressor = m.ctrl.State().AutoCompressor
		cmds := []tea.Cmd{monitorTickCmd(m.ctrl)}
		if msg.listener == controller.ListenerStopped && !m.reconnecting {
			m.reconnecting = true
			m.log.add(fmt.Sprintf("Connection lost, retrying in %s", m.backoff), true)
			cmds = append(cmds, reconnectAfter(m.backoff))
		}
		return m, tea.Batch(cmds...)

	case reconnectAttemptMsg:
		return m, connectCmd(m.ctrl)

	case connectResultMsg:
		if msg.err == nil {
			m.reconnecting = false
			m.backoff = initialBackoff
			m.state = m.ctrl.State()
			return m, nil
		}
		m.reconnecting = true
		m.log.add(fmt.Sprintf("Connect failed: %v (retry in %s)", msg.err, m.backoff), true)
		cmd := reconnectAfter(m.backoff)
		m.backoff = min(m.backoff*2, maxBackoff)
		return m, cmd

	case commandResultMsg:
		if msg.err != nil {
			m.log.add(fmt.Sprintf("%s failed: %v", msg.name, msg.err), true)
		} else {
			m.log.add(msg.name+" sent", false)
		}
		m.state.AutoCompressor = m.ctrl.State().AutoCompressor
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "q":
		if m.focusedField == focusActions {
			m.quitting = true
			return m, tea.Quit
		}
	case "tab", "shift+tab":
		return m.cycleFocus(), nil
	case "esc":
		m.focusActions()
		return m, nil
	case "enter":
		return m.handleEnter()
	}

	// Pass through to focused component
	var cmd tea.Cmd
	if m.focusedField == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.actions, cmd = m.actions.Update(msg)
	}
	return m, cmd
}

func (m monitorModel) selected() (action, bool) {
	a, ok := m.actions.SelectedItem().(action)
	return a, ok
}

func (m monitorModel) cycleFocus() monitorModel {
	a, ok := m.selected()
	if m.focusedField == focusActions && ok && a.needsValue() {
		m.focusInputFor(a)
	} else {
		m.focusActions()
	}
	return m
}

func (m *monitorModel) focusInputFor(a action) {
	m.focusedField = focusInput
	m.input.Placeholder = a.placeholder
	m.input.Focus()
}

func (m *monitorModel) focusActions() {
	m.focusedField = focusActions
	m.input.Blur()
}

func (m monitorModel) handleEnter() (tea.Model, tea.Cmd) {
	a, ok := m.selected()
	if !ok {
		return m, nil
	}

	if a.needsValue() && m.focusedField == focusActions {
		m.input.SetValue("")
		m.focusInputFor(a)
		return m, nil
	}

	value := m.input.Value()
	m.input.SetValue("")
	m.focusActions()
	return m, runActionCmd(m.ctrl, a, value)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("FROSTLOCK MONITOR"))
	s.WriteString(" ")

	connStatus := statsValueStyle.Render("CONNECTED")
	if m.reconnecting {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | listener %s | tab focus, enter run, q quit",
		m.connInfo, connStatus, m.listener)))
	s.WriteString("\n\n")

	focusedBoxStyle := boxStyle.BorderForeground(lipgloss.Color("12"))

	leftWidth := 40
	rightWidth := max(30, m.width-leftWidth-6)

	actionStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusActions {
		actionStyle = focusedBoxStyle.Width(leftWidth)
	}
	left := actionStyle.Render(m.actions.View() + "\n" + m.renderInput())
	right := boxStyle.Width(rightWidth).Render(m.renderState())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	s.WriteString("\n")

	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderStatisticsBar()))
	s.WriteString("\n")

	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")
	logHeight := max(3, m.height-lipgloss.Height(s.String())-3)
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.log.tail(logHeight))))

	return s.String()
}

func (m monitorModel) renderInput() string {
	a, ok := m.selected()
	if !ok || !a.needsValue() {
		return headerStyle.Render("Value: (none needed)")
	}
	if m.focusedField == focusInput {
		return statsLabelStyle.Render("Value: ") + m.input.View()
	}
	return headerStyle.Render("Value: press enter to edit")
}

func (m monitorModel) renderState() string {
	if !m.hasState {
		return warningStyle.Render("Waiting for telemetry...")
	}

	st := m.state
	var b strings.Builder
	b.WriteString(statsLabelStyle.Render("CABINET"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		statsLabelStyle.Render("Current:"), statsValueStyle.Render(fmt.Sprintf("%.1f°C", st.CurrentTemperature)),
		statsLabelStyle.Render("Set point:"), statsValueStyle.Render(fmt.Sprintf("%.1f°C ±%d", st.SetPoint, st.Deviation)))
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		statsLabelStyle.Render("System:"), statsValueStyle.Render(st.SystemStatus.String()),
		statsLabelStyle.Render("Compressor:"), compressorStyle(st.CompressorStatus).Render(st.CompressorStatus.String()))

	auto := headerStyle.Render("off")
	if st.AutoCompressor {
		auto = statsValueStyle.Render("on")
	}
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		statsLabelStyle.Render("Auto control:"), auto,
		statsLabelStyle.Render("Address:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Address)))
	fmt.Fprintf(&b, "%s %s\n",
		statsLabelStyle.Render("Device:"), statsValueStyle.Render(st.DeviceCode.String()))
	fmt.Fprintf(&b, "%s %s\n", statsLabelStyle.Render("Locks:"), renderLocks(st.Locks))

	age := time.Since(st.LastUpdate).Truncate(time.Second)
	updated := headerStyle.Render(fmt.Sprintf("updated %s ago", age))
	if age > staleAfter {
		updated = warningStyle.Render(fmt.Sprintf("stale: last update %s ago", age))
	}
	b.WriteString(updated)
	return b.String()
}

func (m monitorModel) renderStatisticsBar() string {
	st := m.stats
	errs := st.CRCErrors + st.DecodeErrors
	var errorPercent float64
	if st.TotalFrames > 0 {
		errorPercent = float64(errs) * 100.0 / float64(st.TotalFrames)
	}

	errText := statsValueStyle.Render("0.0%")
	if errs > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}
	return fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Telemetry:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TelemetryFrames)),
		statsLabelStyle.Render("Errors:"), errText,
		statsLabelStyle.Render("Commands:"), statsValueStyle.Render(fmt.Sprintf("%d", st.CommandsSent)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f fr/s", st.FrameRate)),
	)
}
