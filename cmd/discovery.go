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

var (
	discoveryTimeout int
	discoveryList    bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "List the cabinets reporting on the connection",
	Long: `Listen for telemetry and list every cabinet that reports.

Lockers push status frames on their upload interval without being asked,
so discovery is passive: each distinct address and device code seen before
the timeout is listed once. Use a timeout longer than the upload interval.

The device codes found here are what the send params command needs to
readdress a cabinet.

With --list, the serial ports present on this machine are printed and
nothing is opened.

Examples:
  frostlock discovery --list
  frostlock discovery --port /dev/ttyUSB0 --timeout 15

Exit codes:
  0 - At least one cabinet found
  1 - No cabinets reported before the timeout
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 15, "Seconds to listen for telemetry")
	discoveryCmd.Flags().BoolVar(&discoveryList, "list", false, "List available serial ports and exit")
}

// cabinetInfo is one cabinet seen during discovery
type cabinetInfo struct {
	address    uint8
	deviceCode lockproto.DeviceCode
	firstSeen  time.Time
	frames     int
	last       lockproto.Telemetry
}

// cabinetSet collects distinct cabinets in the order they first report
type cabinetSet struct {
	order []*cabinetInfo
	index map[cabinetKey]*cabinetInfo
}

type cabinetKey struct {
	address    uint8
	deviceCode lockproto.DeviceCode
}

func newCabinetSet() *cabinetSet {
	return &cabinetSet{index: make(map[cabinetKey]*cabinetInfo)}
}

// add records a telemetry frame and reports whether its cabinet is new
func (s *cabinetSet) add(t *lockproto.Telemetry, at time.Time) bool {
	key := cabinetKey{address: t.Address, deviceCode: t.DeviceCode}
	if c, ok := s.index[key]; ok {
		c.frames++
		c.last = *t
		return false
	}
	c := &cabinetInfo{address: t.Address, deviceCode: t.DeviceCode, firstSeen: at, frames: 1, last: *t}
	s.index[key] = c
	s.order = append(s.order, c)
	return true
}

func (s *cabinetSet) len() int {
	return len(s.order)
}

func printCabinet(out io.Writer, c *cabinetInfo) {
	fmt.Fprintf(out, "\nCabinet found:\n")
	fmt.Fprintf(out, "  Address: %d\n", c.address)
	fmt.Fprintf(out, "  Device code: %s\n", c.deviceCode)
	fmt.Fprintf(out, "  Temperature: %.1f°C (set point %.1f°C)\n", c.last.CurrentTemperature, c.last.SetPoint)
	fmt.Fprintf(out, "  Compressor: %s\n", c.last.CompressorStatus)
}

func printPorts(out io.Writer, ports []string) {
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return
	}
	fmt.Fprintln(out, "Serial ports:")
	for _, p := range ports {
		fmt.Fprintf(out, "  %s\n", p)
	}
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	if discoveryList {
		ports, err := transport.ListPorts()
		if err != nil {
			return &ExitError{Code: 2, Err: fmt.Errorf("list ports: %w", err)}
		}
		printPorts(cmd.OutOrStdout(), ports)
		return nil
	}

	ch, connInfo, err := OpenChannel()
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer ch.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Frostlock - Cabinet Discovery\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Timeout: %d seconds\n", discoveryTimeout)

	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, time.Duration(discoveryTimeout)*time.Second)
	defer cancel()

	cabinets := newCabinetSet()
	readErr := readFrames(ctx, ch, func(buf []byte) {
		msg, err := lockproto.Parse(buf)
		if err != nil || msg.Kind != lockproto.KindTelemetry {
			return
		}
		if cabinets.add(msg.Telemetry, msg.Received) {
			printCabinet(out, cabinets.order[cabinets.len()-1])
		}
	})
	if readErr != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("read error: %w", readErr)}
	}

	fmt.Fprintf(out, "\n--- Discovery summary ---\n")
	fmt.Fprintf(out, "Cabinets found: %d\n", cabinets.len())
	for _, c := range cabinets.order {
		fmt.Fprintf(out, "  %3d  %s  %d frames\n", c.address, c.deviceCode, c.frames)
	}

	if cabinets.len() == 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("no cabinets reported in %ds; check connection and device power", discoveryTimeout)}
	}
	return nil
}
