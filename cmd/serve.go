// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/frostlock/internal/api"
	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller behind the HTTP/WebSocket API",
	Long: `Connect to the locker and serve its state and commands over HTTP.

Routes:
  GET  /api/status                 current state
  GET  /api/statistics             frame and command counters
  POST /api/temperature            {"temperature": 4.5}
  POST /api/temperature/deviation  {"deviation": 2}
  POST /api/locks/open             {"indices": [1, 6]}
  POST /api/compressor/manual      {"start": true}
  POST /api/compressor/auto        {"enable": true}
  POST /api/system/parameters      {"device_code": "...", "address": 1, ...}
  GET  /ws                         update_status push stream
  GET  /healthz, /metrics

A failure to open the channel at startup is logged and the API still
starts; commands then answer 503 until the process is restarted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":5000", "HTTP listen address")
	serveCmd.Flags().Bool("auto", false, "Enable automatic compressor control at startup")
	if err := v.BindPFlag("http.addr", serveCmd.Flags().Lookup("listen")); err != nil {
		panic(err)
	}
	if err := v.BindPFlag("device.auto_compressor", serveCmd.Flags().Lookup("auto")); err != nil {
		panic(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	ctrl, err := newController()
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	recorder := metrics.New(reg)
	ctrl.SetObserver(recorder)

	hub := api.NewHub(ctrl.State, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	ctrl.SetNotifier(controller.Notifiers{hub, recorder})

	logger.Info("Connecting to locker", zap.String("connection", describeConnection()))
	if err := ctrl.Connect(); err != nil {
		logger.Error("Controller connect failed; API will report not connected", zap.Error(err))
	}

	server := api.NewServer(ctrl, hub, api.Options{
		HTTP:     cfg.HTTP,
		Metrics:  cfg.Metrics,
		Registry: reg,
		Recorder: recorder,
	}, logger)
	if err := server.Start(); err != nil {
		_ = ctrl.Disconnect()
		return err
	}

	<-ctx.Done()
	logger.Info("Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API shutdown incomplete", zap.Error(err))
	}
	stopHub()

	if err := ctrl.Disconnect(); err != nil {
		logger.Warn("Controller disconnect failed", zap.Error(err))
	}
	logger.Info("Stopped")
	return nil
}
