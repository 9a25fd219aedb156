// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// eventLog keeps the most recent entries, shared by both TUIs
type eventLog struct {
	entries []errorLogEntry
	max     int
}

func newEventLog(limit int) eventLog {
	return eventLog{max: limit}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// tail returns at most n of the newest entries
func (l *eventLog) tail(n int) []errorLogEntry {
	if n >= len(l.entries) {
		return l.entries
	}
	return l.entries[len(l.entries)-n:]
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *lockproto.Statistics
	log           eventLog
	sync          syncTracker
	width         int
	height        int
	quitting      bool
	readErr       error
	lastTelemetry *lockproto.Telemetry
}

// Messages
type tickMsg time.Time

type readErrorMsg struct {
	err error
}

// Shared styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statsLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	statsValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         lockproto.NewStatistics(),
		log:           newEventLog(100),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.log.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case readErrorMsg:
		m.readErr = msg.err
		m.log.add(fmt.Sprintf("Read failed: %v", msg.err), true)

	case frameResult:
		m.handleFrame(msg)
	}

	return m, nil
}

func (m *model) handleFrame(r frameResult) {
	count, justSynced := m.sync.observe(r)
	if justSynced {
		if m.sync.skipped > 0 {
			m.log.add(fmt.Sprintf("Synchronized after skipping %d invalid bytes", m.sync.skipped), false)
		} else {
			m.log.add("Synchronized", false)
		}
	}
	if !count {
		return
	}

	m.stats.Update(r.msg, r.err, r.anomalies)

	if r.err != nil {
		label := "DECODE ERROR"
		if errors.Is(r.err, lockproto.ErrCRCMismatch) {
			label = "CRC ERROR"
		}
		m.log.add(fmt.Sprintf("%s: %v", label, r.err), true)
		return
	}

	if r.msg.Kind == lockproto.KindTelemetry {
		m.lastTelemetry = r.msg.Telemetry
	}

	if len(r.anomalies) > 0 {
		for _, a := range r.anomalies {
			m.log.add(fmt.Sprintf("TELEMETRY: %s", a.Message), true)
		}
	} else if m.showAll {
		m.log.add(fmt.Sprintf("%s %s seq=%d (valid)",
			r.msg.Kind, lockproto.FormatFunction(r.msg.Frame.Function), r.msg.Frame.Sequence), false)
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("FROSTLOCK - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset, 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	switch {
	case m.readErr != nil:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
	case !m.sync.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.sync.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.sync.skipped)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	if m.lastTelemetry != nil {
		s.WriteString(statsLabelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderTelemetry(m.lastTelemetry)))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderLog(m.log.tail(logHeight))))

	return s.String()
}

func renderStats(stats *lockproto.Statistics) string {
	stats.CalculateRates()
	errs := stats.CRCErrors + stats.DecodeErrors
	valid := stats.TelemetryFrames + stats.AckFrames + stats.IgnoredFrames

	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(valid) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(errs) * 100.0 / float64(stats.TotalFrames)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", valid, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errs, errorPercent)),
	)

	if errs > 0 {
		fmt.Fprintf(&b, "%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.CRCErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.DecodeErrors)),
		)
	}
	if stats.Anomalies > 0 {
		fmt.Fprintf(&b, "%s %s\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", stats.Anomalies)))
	}
	if stats.CommandsSent > 0 {
		fmt.Fprintf(&b, "%s %s   %s %d\n",
			statsLabelStyle.Render("Commands:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.CommandsSent)),
			statsLabelStyle.Render("Write Errors:"), stats.WriteErrors)
	}

	rate := statsValueStyle
	if stats.ErrorRate > 0 {
		rate = errorStyle
	}
	fmt.Fprintf(&b, "%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), rate.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate)),
	)
	return b.String()
}

func renderTelemetry(t *lockproto.Telemetry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		statsLabelStyle.Render("System:"), statsValueStyle.Render(t.SystemStatus.String()),
		statsLabelStyle.Render("Compressor:"), compressorStyle(t.CompressorStatus).Render(t.CompressorStatus.String()))
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Current:"), statsValueStyle.Render(fmt.Sprintf("%.1f°C", t.CurrentTemperature)),
		statsLabelStyle.Render("Set point:"), statsValueStyle.Render(fmt.Sprintf("%.1f°C", t.SetPoint)),
		statsLabelStyle.Render("Deviation:"), statsValueStyle.Render(fmt.Sprintf("%d°C", t.Deviation)))
	fmt.Fprintf(&b, "%s %s   %s %s",
		statsLabelStyle.Render("Device:"), statsValueStyle.Render(t.DeviceCode.String()),
		statsLabelStyle.Render("Locks:"), renderLocks(t.Locks))
	return b.String()
}

func compressorStyle(c lockproto.CompressorStatus) lipgloss.Style {
	switch c {
	case lockproto.CompressorFault, lockproto.CompressorUnknown:
		return errorStyle
	case lockproto.CompressorPreStart:
		return warningStyle
	default:
		return statsValueStyle
	}
}

// renderLocks draws one cell per lock, open locks highlighted
func renderLocks(l lockproto.LockStates) string {
	cells := make([]string, len(l))
	for i, open := range l {
		label := fmt.Sprintf("%d", i+1)
		if open {
			cells[i] = warningStyle.Render("[" + label + "]")
		} else {
			cells[i] = headerStyle.Render(" " + label + " ")
		}
	}
	return strings.Join(cells, "")
}

func renderLog(entries []errorLogEntry) string {
	if len(entries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	var b strings.Builder
	for _, entry := range entries {
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			fmt.Fprintf(&b, "%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&b, "%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message))
		}
	}
	return b.String()
}
