// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

var frameTestTimeout int

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid telemetry frame",
	Long: `Wait for a valid telemetry frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a
complete status frame that passes the CRC check. Corrupt buffers and
acknowledgements are skipped.

Exit codes:
  0 - Telemetry received before timeout
  1 - Timeout reached without receiving valid telemetry
  2 - Connection error`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	ch, connInfo, err := OpenChannel()
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer ch.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Frostlock - Frame Test\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Timeout: %d seconds\n", frameTestTimeout)
	fmt.Fprintf(out, "Waiting for valid telemetry...\n\n")

	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, time.Duration(frameTestTimeout)*time.Second)
	defer cancel()

	var (
		found   *lockproto.Message
		skipped int
	)
	readErr := readFrames(ctx, ch, func(buf []byte) {
		if found != nil {
			return
		}
		msg, err := lockproto.Parse(buf)
		if err != nil || msg.Kind != lockproto.KindTelemetry {
			skipped += len(buf)
			return
		}
		found = msg
		cancel()
	})

	if found != nil {
		if skipped > 0 {
			fmt.Fprintf(out, "(skipped %d bytes before sync)\n", skipped)
		}
		f := found.Frame
		fmt.Fprintf(out, "SUCCESS: Received valid telemetry\n")
		fmt.Fprintf(out, "  Sequence: %d\n", f.Sequence)
		fmt.Fprintf(out, "  Address: %d\n", f.Address)
		fmt.Fprintf(out, "  Length: %d bytes\n", f.Length)
		fmt.Fprintf(out, "  CRC: 0x%04X\n", f.CRC)
		fmt.Fprintf(out, "  Device: %s\n", found.Telemetry.DeviceCode)
		return nil
	}
	if readErr != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("read error: %w", readErr)}
	}
	return &ExitError{Code: 1, Err: fmt.Errorf("timeout: no valid telemetry received within %d seconds", frameTestTimeout)}
}
