// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

var linkTestDuration int

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test raw connection stability",
	Long: `Hold the connection open without sending anything.

Every buffer received is logged in hex with no protocol decoding, and a
heartbeat is printed each second. Useful for debugging a flaky serial cable
or a bridge that drops idle WebSockets.

Exit codes:
  0 - Connection stayed up for the whole duration
  1 - Connection failed during the test
  2 - Connection error`,
	RunE: runLinkTest,
}

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

// linkCounters tallies what arrived during a link test
type linkCounters struct {
	buffers int
	bytes   int
}

func (c linkCounters) report(out io.Writer, elapsed time.Duration, result string) {
	fmt.Fprintf(out, "\n--- Test Results ---\n")
	fmt.Fprintf(out, "Duration: %s\n", elapsed.Truncate(time.Millisecond))
	fmt.Fprintf(out, "Buffers received: %d\n", c.buffers)
	fmt.Fprintf(out, "Bytes received: %d\n", c.bytes)
	fmt.Fprintf(out, "Result: %s\n", result)
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	ch, connInfo, err := OpenChannel()
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer ch.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connection Stability Test\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Duration: %d seconds\n\n", linkTestDuration)

	duration := time.Duration(linkTestDuration) * time.Second
	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, duration)
	defer cancel()

	start := time.Now()
	counters, err := watchLink(ctx, out, ch)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(out, "\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
		counters.report(out, elapsed, "FAILED (connection error)")
		return &ExitError{Code: 1, Err: err}
	}
	counters.report(out, elapsed, "PASSED (connection stable)")
	return nil
}

// watchLink logs every buffer and a once-a-second heartbeat until ctx ends
// or the channel fails
func watchLink(ctx context.Context, out io.Writer, ch transport.Channel) (linkCounters, error) {
	var counters linkCounters

	buffers := make(chan []byte, 100)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readBursts(ctx, ch, func(buf []byte) {
			select {
			case buffers <- buf:
			case <-ctx.Done():
			}
		})
	}()

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()
	deadline, hasDeadline := ctx.Deadline()

	fmt.Fprintf(out, "Listening for data...\n\n")
	for {
		select {
		case <-ctx.Done():
			return counters, nil

		case buf := <-buffers:
			counters.buffers++
			counters.bytes += len(buf)
			fmt.Fprintf(out, "[%s] Received %d bytes: %s\n",
				time.Now().Format("15:04:05.000"), len(buf), lockproto.FormatHex(buf))

		case err := <-readErr:
			if err != nil {
				return counters, err
			}
			return counters, nil

		case <-heartbeat.C:
			if hasDeadline {
				fmt.Fprintf(out, "[%s] Still connected... (%.0fs remaining)\n",
					time.Now().Format("15:04:05.000"), time.Until(deadline).Seconds())
			}
		}
	}
}
