// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display received frames in human-readable format",
	Long: `Continuously decode and display locker frames as they arrive.

Each received buffer is shown with timestamp, kind, function and decoded
payload. Buffers that fail the CRC or header checks are printed as hex with
the reason. Nothing is ever sent to the locker.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ch, connInfo, err := OpenChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Frostlock - Raw Frame Log\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	ctx, stop := signalContext()
	defer stop()

	err = readFrames(ctx, ch, func(buf []byte) {
		printBuffer(out, buf)
	})
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// printBuffer parses one buffer and writes its decoded form
func printBuffer(out io.Writer, buf []byte) {
	msg, err := lockproto.Parse(buf)
	if err != nil {
		fmt.Fprintf(out, "[%s] [ERROR] %v\n  Raw: %s\n\n",
			time.Now().Format("15:04:05.000"), err, lockproto.FormatHex(buf))
		return
	}
	fmt.Fprint(out, lockproto.FormatMessage(msg))
	for _, a := range anomaliesOf(msg) {
		fmt.Fprintf(out, "  \033[1;33mANOMALY:\033[0m %s\n", a.Message)
	}
	fmt.Fprintln(out)
}

func anomaliesOf(msg *lockproto.Message) []lockproto.Anomaly {
	if msg == nil || msg.Kind != lockproto.KindTelemetry {
		return nil
	}
	return lockproto.ValidateTelemetry(msg.Telemetry)
}
