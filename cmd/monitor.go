// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and controlling the locker",
	Long: `Monitor and control the locker via an interactive terminal UI.

Features:
  - Live cabinet state (temperatures, compressor, system status, locks)
  - Set point, deviation, lock and compressor commands
  - Automatic compressor control toggle
  - Statistics tracking and event log
  - Automatic reconnection with backoff when the channel fails

Tab switches between the action list and the value input. Enter runs the
selected action. Log output goes only to the configured log file while the
TUI is running.

Supports both serial and WebSocket connections.`,
	Annotations: map[string]string{"fullscreen": "true"},
	RunE:        runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctrl, err := newController()
	if err != nil {
		return err
	}

	m := initialMonitorModel(ctrl, describeConnection())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	ctrl.SetObserver(&programObserver{p: p})
	ctrl.SetNotifier(controller.NotifierFunc(func(s controller.State) error {
		p.Send(stateMsg(s))
		return nil
	}))

	_, runErr := p.Run()
	_ = ctrl.Disconnect()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// programObserver forwards protocol events into the TUI event log
type programObserver struct {
	p *tea.Program
}

func (o *programObserver) FrameReceived(lockproto.Kind) {}

func (o *programObserver) FrameRejected(err error) {
	o.p.Send(eventMsg{text: fmt.Sprintf("Frame rejected: %v", err), isError: true})
}

func (o *programObserver) CommandSent(function uint8, err error) {
	if err != nil {
		o.p.Send(eventMsg{text: fmt.Sprintf("%s write failed: %v", lockproto.FormatFunction(function), err), isError: true})
	}
}

func (o *programObserver) AutoControl(start bool) {
	action := "stop"
	if start {
		action = "start"
	}
	o.p.Send(eventMsg{text: "Auto control: compressor " + action})
}

func (o *programObserver) ConnectionChanged(connected bool) {
	if connected {
		o.p.Send(eventMsg{text: "Connected"})
	} else {
		o.p.Send(eventMsg{text: "Disconnected"})
	}
}
