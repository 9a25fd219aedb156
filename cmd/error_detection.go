// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupt frames and anomalous telemetry",
	Long: `Track frame errors and anomalous telemetry with statistics.

This command validates each received buffer and detects:
  - CRC errors and malformed frames (bad header, trailer or length)
  - Telemetry with unknown status codes or a compressor fault
  - Suspicious configuration (negative set point, zero deviation)
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Errors seen before the first valid frame are treated as line noise while the
reader synchronizes and are not counted.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// frameResult is one received buffer after parsing and validation
type frameResult struct {
	raw       []byte
	msg       *lockproto.Message
	err       error
	anomalies []lockproto.Anomaly
}

func classify(buf []byte) frameResult {
	msg, err := lockproto.Parse(buf)
	return frameResult{raw: buf, msg: msg, err: err, anomalies: anomaliesOf(msg)}
}

// syncTracker suppresses errors until the first valid frame
type syncTracker struct {
	synchronized bool
	skipped      int
}

// observe reports whether r should be counted, and whether it is the frame
// that completed synchronization
func (s *syncTracker) observe(r frameResult) (count, justSynced bool) {
	if s.synchronized {
		return true, false
	}
	if r.err != nil {
		s.skipped += len(r.raw)
		return false, false
	}
	s.synchronized = true
	return true, true
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ch, connInfo, err := OpenChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	ctx, stop := signalContext()
	defer stop()

	if useTUI {
		return runTUIMode(ctx, ch, connInfo)
	}
	return runTextMode(ctx, cmd.OutOrStdout(), ch, connInfo)
}

// printDecodeError prints a rejected buffer in highlighted format
func printDecodeError(out io.Writer, r frameResult) {
	timestamp := time.Now().Format("15:04:05.000")
	label := "DECODE ERROR"
	if errors.Is(r.err, lockproto.ErrCRCMismatch) {
		label = "CRC ERROR"
	}
	fmt.Fprintf(out, "[%s] \033[1;31m%s:\033[0m %v\n", timestamp, label, r.err)
	fmt.Fprintf(out, "  Raw (%d bytes): %s\n", len(r.raw), lockproto.FormatHex(r.raw))
	fmt.Fprintf(out, "  >>> FRAME REJECTED <<<\n\n")
}

// printAnomalies prints the anomalies of an otherwise valid status frame
func printAnomalies(out io.Writer, r frameResult) {
	timestamp := r.msg.Received.Format("15:04:05.000")
	t := r.msg.Telemetry

	fmt.Fprintf(out, "[%s] \033[1;33mANOMALY:\033[0m TELEMETRY seq=%d addr=%d\n", timestamp, r.msg.Frame.Sequence, r.msg.Frame.Address)
	fmt.Fprintf(out, "  CRC: \033[1;32mOK\033[0m\n")

	for i, a := range r.anomalies {
		switch a.Type {
		case lockproto.AnomalyCompressorFault:
			fmt.Fprintf(out, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
			fmt.Fprintf(out, "    current=%.1f°C set point=%.1f°C\n", t.CurrentTemperature, t.SetPoint)

		case lockproto.AnomalyUnknownSystemStatus, lockproto.AnomalyUnknownCompressorStatus:
			fmt.Fprintf(out, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
			fmt.Fprintf(out, "    raw system=%d compressor=%d\n", t.SystemCode, t.CompressorCode)

		default:
			fmt.Fprintf(out, "  Issue %d: %s\n", i+1, a.Message)
		}
	}

	fmt.Fprintf(out, "  Device: %s  Locks open: %v\n\n", t.DeviceCode, t.Locks.Open())
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, ch transport.Channel, connInfo string) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	go func() {
		err := readFrames(ctx, ch, func(buf []byte) {
			p.Send(classify(buf))
		})
		if err != nil {
			p.Send(readErrorMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection as a plain text stream
func runTextMode(ctx context.Context, out io.Writer, ch transport.Channel, connInfo string) error {
	fmt.Fprintf(out, "Frostlock - Error Detection Mode\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All frames\n")
	} else {
		fmt.Fprintf(out, "Mode: Errors only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	stats := lockproto.NewStatistics()
	var tracker syncTracker

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	results := make(chan frameResult, 16)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readFrames(ctx, ch, func(buf []byte) {
			select {
			case results <- classify(buf):
			case <-ctx.Done():
			}
		})
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprint(out, stats.String())
			return nil

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			return nil

		case r := <-results:
			count, justSynced := tracker.observe(r)
			if justSynced {
				if tracker.skipped > 0 {
					fmt.Fprintf(out, "[SYNC] Synchronized after skipping %d invalid bytes\n\n", tracker.skipped)
				} else {
					fmt.Fprintf(out, "[SYNC] Synchronized\n\n")
				}
			}
			if !count {
				continue
			}

			stats.Update(r.msg, r.err, r.anomalies)
			switch {
			case r.err != nil:
				printDecodeError(out, r)
			case len(r.anomalies) > 0:
				printAnomalies(out, r)
			case showAll:
				fmt.Fprint(out, lockproto.FormatMessage(r.msg))
				fmt.Fprintln(out)
			}

		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, stats.String())
			fmt.Fprintln(out)
		}
	}
}
