// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/frostlock/internal/config"
	"github.com/Thermoquad/frostlock/internal/logging"
)

var (
	cfgFile string

	v      = config.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "frostlock",
	Short: "Refrigerated parcel locker controller",
	Long: `Frostlock - drive a refrigerated parcel locker over its serial protocol.

Reads status frames from the locker, keeps the latest cabinet state, runs
automatic compressor control and sends set point, lock and configuration
commands. The serve command exposes all of it over HTTP and WebSocket.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 38400]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the FROSTLOCK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Every flag can also be set in frostlock.yaml or as a FROSTLOCK_* variable.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Config file (default ./frostlock.yaml)")

	// Serial connection flags
	pf.StringP("port", "p", "", "Serial port device")
	pf.IntP("baud", "b", 38400, "Baud rate (serial only)")

	// WebSocket connection flags
	pf.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.String("username", "", "Username for HTTP Basic auth")
	pf.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	pf.IntP("address", "a", 1, "Locker device address (1-120)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console, json)")

	// An explicit flag wins over file and environment values
	for key, flag := range map[string]string{
		"serial.port":          "port",
		"serial.baud":          "baud",
		"bridge.url":           "url",
		"bridge.username":      "username",
		"bridge.no_ssl_verify": "no-ssl-verify",
		"device.address":       "address",
		"logging.level":        "log-level",
		"logging.format":       "log-format",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s: %v", key, err))
		}
	}
}

// loadConfig runs before every command
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	console := io.Writer(cmd.ErrOrStderr())
	if fullScreen(cmd) {
		console = io.Discard
	}
	l, err := logging.NewWithConsole(cfg.Logging, console)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// fullScreen reports whether cmd takes over the terminal
func fullScreen(cmd *cobra.Command) bool {
	if cmd.Annotations["fullscreen"] == "true" {
		return true
	}
	f := cmd.Flags().Lookup("tui")
	return f != nil && f.Value.String() == "true"
}

// Execute runs the root command
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

// ExitError carries a specific process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }
