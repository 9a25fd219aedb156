// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

var (
	sendAckTimeout time.Duration

	paramsDeviceCode      string
	paramsAddress         uint8
	paramsUploadInterval  uint8
	paramsCompressorDelay uint8
	paramsTemperature     float64
	paramsDeviation       uint8
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single command to the locker",
	Long: `Connect, send one command, optionally wait for the locker's ACK, and exit.

Use --ack-timeout 0 to return as soon as the frame is written.`,
}

var sendTempCmd = &cobra.Command{
	Use:   "temp <celsius>",
	Short: "Set the cabinet set point (0-63, half degrees allowed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		celsius, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", args[0])
		}
		return sendOne(cmd, func(c *controller.Controller) error { return c.SetTemperature(celsius) })
	},
}

var sendDeviationCmd = &cobra.Command{
	Use:   "deviation <celsius>",
	Short: "Set the hysteresis band (0-255)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid deviation %q", args[0])
		}
		return sendOne(cmd, func(c *controller.Controller) error { return c.SetTemperatureDeviation(dev) })
	},
}

var sendOpenCmd = &cobra.Command{
	Use:   "open <lock>...",
	Short: "Open one or more locks by 1-based index",
	Long: `Open one or more locks by 1-based index.

Only locks 1-10 can be expressed in the open command; 11 and 12 are
silently dropped by the protocol.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locks := make([]int, 0, len(args))
		for _, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid lock index %q", a)
			}
			locks = append(locks, n)
		}
		return sendOne(cmd, func(c *controller.Controller) error { return c.OpenLocks(locks) })
	},
}

var sendCompressorCmd = &cobra.Command{
	Use:       "compressor start|stop",
	Short:     "Start or stop the compressor manually",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"start", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var start bool
		switch args[0] {
		case "start":
			start = true
		case "stop":
		default:
			return fmt.Errorf("expected start or stop, got %q", args[0])
		}
		return sendOne(cmd, func(c *controller.Controller) error { return c.ControlCompressorManual(start) })
	},
}

var sendParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "Broadcast system parameters",
	Long: `Broadcast a system parameters frame to the broadcast address.

Every field is required. The locker whose device code matches applies it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := lockproto.ParseDeviceCode(paramsDeviceCode)
		if err != nil {
			return err
		}
		p := lockproto.SystemParameters{DeviceCode: &code}
		flags := cmd.Flags()
		if flags.Changed("new-address") {
			p.Address = &paramsAddress
		}
		if flags.Changed("upload-interval") {
			p.UploadInterval = &paramsUploadInterval
		}
		if flags.Changed("compressor-delay") {
			p.CompressorDelay = &paramsCompressorDelay
		}
		if flags.Changed("temperature") {
			p.Temperature = &paramsTemperature
		}
		if flags.Changed("deviation") {
			p.Deviation = &paramsDeviation
		}
		if err := p.Validate(); err != nil {
			return err
		}
		// Broadcast frames are not acknowledged
		sendAckTimeout = 0
		return sendOne(cmd, func(c *controller.Controller) error { return c.SetSystemParameters(p) })
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.PersistentFlags().DurationVar(&sendAckTimeout, "ack-timeout", 2*time.Second, "How long to wait for an ACK (0 disables)")

	sendCmd.AddCommand(sendTempCmd, sendDeviationCmd, sendOpenCmd, sendCompressorCmd, sendParamsCmd)

	f := sendParamsCmd.Flags()
	f.StringVar(&paramsDeviceCode, "device-code", "", "Target device code (10 hex digits)")
	f.Uint8Var(&paramsAddress, "new-address", 0, "Address to assign (1-120)")
	f.Uint8Var(&paramsUploadInterval, "upload-interval", 0, "Telemetry upload interval")
	f.Uint8Var(&paramsCompressorDelay, "compressor-delay", 0, "Compressor start delay")
	f.Float64Var(&paramsTemperature, "temperature", 0, "Set point (0-63, whole degrees)")
	f.Uint8Var(&paramsDeviation, "deviation", 0, "Hysteresis band")
	_ = sendParamsCmd.MarkFlagRequired("device-code")
}

// ackObserver signals the first ACK it sees
type ackObserver struct {
	acks chan struct{}
}

func (a *ackObserver) FrameReceived(kind lockproto.Kind) {
	if kind != lockproto.KindAck {
		return
	}
	select {
	case a.acks <- struct{}{}:
	default:
	}
}

func (a *ackObserver) FrameRejected(error)      {}
func (a *ackObserver) CommandSent(uint8, error) {}
func (a *ackObserver) AutoControl(bool)         {}
func (a *ackObserver) ConnectionChanged(bool)   {}

func sendOne(cmd *cobra.Command, send func(*controller.Controller) error) error {
	ctrl, err := newController()
	if err != nil {
		return err
	}
	obs := &ackObserver{acks: make(chan struct{}, 1)}
	ctrl.SetObserver(obs)

	if err := ctrl.Connect(); err != nil {
		return err
	}
	defer ctrl.Disconnect()

	if err := send(ctrl); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent %s\n", cmd.Name())

	if sendAckTimeout <= 0 {
		return nil
	}
	select {
	case <-obs.acks:
		fmt.Fprintln(out, "ACK received")
		return nil
	case <-time.After(sendAckTimeout):
		return fmt.Errorf("no ACK within %s", sendAckTimeout)
	}
}
