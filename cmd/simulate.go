// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/frostlock/internal/simulator"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

var (
	simDeviceCode string
	simInterval   time.Duration
	simSetPoint   float64
	simAmbient    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as a locker appliance on the connection",
	Long: `Run a software locker on a serial port or WebSocket bridge.

The simulated cabinet answers command frames with acknowledgements and
pushes telemetry every --interval. With the compressor on the cabinet
cools toward -20°C; otherwise it warms toward --ambient. Opened locks
report open for three telemetry frames.

Point a second frostlock at the other end of a null-modem cable (or a
socat pty pair) to exercise the controller without hardware.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simDeviceCode, "device-code", "1020304050", "Device code (10 hex digits)")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 5*time.Second, "Telemetry interval")
	simulateCmd.Flags().Float64Var(&simSetPoint, "set-point", 4, "Initial set point in °C")
	simulateCmd.Flags().Float64Var(&simAmbient, "ambient", 22, "Ambient temperature in °C")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	code, err := lockproto.ParseDeviceCode(simDeviceCode)
	if err != nil {
		return err
	}
	if simInterval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	simCfg := simulator.DefaultConfig()
	simCfg.Address = uint8(cfg.Device.Address)
	simCfg.DeviceCode = code
	simCfg.SetPoint = simSetPoint
	simCfg.Ambient = simAmbient
	simCfg.UploadInterval = uint8(min(simInterval/time.Second, 255))

	ch, connInfo, err := OpenChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	ctx, stop := signalContext()
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Frostlock - Simulator\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Address: %d  Device: %s  Interval: %s\n", simCfg.Address, code, simInterval)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	dev := simulator.New(simCfg, logger)
	if err := dev.Run(ctx, ch, simInterval); err != nil {
		return err
	}
	logger.Info("Simulator stopped", zap.Int("commands", dev.CommandsApplied()))
	return nil
}
