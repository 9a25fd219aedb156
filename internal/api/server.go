// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api exposes a controller over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/frostlock/internal/config"
	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/internal/metrics"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

// Controller is the part of controller.Controller the API drives
type Controller interface {
	State() controller.State
	Statistics() lockproto.Statistics
	SetTemperature(celsius float64) error
	SetTemperatureDeviation(deviation int) error
	OpenLocks(locks []int) error
	ControlCompressorManual(start bool) error
	EnableAutoCompressorControl(enable bool)
	SetSystemParameters(p lockproto.SystemParameters) error
}

// Options carries the optional pieces of a Server
type Options struct {
	HTTP     config.HTTPConfig
	Metrics  config.MetricsConfig
	Registry *prometheus.Registry
	Recorder *metrics.Metrics
}

// Server is the HTTP front end
type Server struct {
	router  *gin.Engine
	ctrl    Controller
	hub     *Hub
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
	server  *http.Server
}

// NewServer wires routes; nothing listens until Start
func NewServer(ctrl Controller, hub *Hub, opts Options, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		ctrl:    ctrl,
		hub:     hub,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.HTTP.CommandRate), opts.HTTP.CommandBurst),
		logger:  logger,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         opts.HTTP.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background. Bind
// failures are returned; later serve failures are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting API server", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	if s.opts.Recorder != nil {
		s.router.Use(s.opts.Recorder.GinMiddleware())
	}

	s.router.GET("/healthz", s.healthCheck)
	if s.opts.Metrics.Enable && s.opts.Registry != nil {
		s.router.GET(s.opts.Metrics.Path, gin.WrapH(metrics.Handler(s.opts.Registry)))
	}
	s.router.GET("/ws", gin.WrapF(s.hub.ServeWS))

	api := s.router.Group("/api")
	api.Use(CORSMiddleware())
	{
		// Preflight requests are answered by CORSMiddleware
		api.OPTIONS("/*path", func(*gin.Context) {})

		api.GET("/status", s.getStatus)
		api.GET("/statistics", s.getStatistics)

		commands := api.Group("")
		commands.Use(RateLimitMiddleware(s.limiter))
		{
			commands.POST("/temperature", s.setTemperature)
			commands.POST("/temperature/deviation", s.setDeviation)
			commands.POST("/locks/open", s.openLocks)
			commands.POST("/compressor/manual", s.compressorManual)
			commands.POST("/compressor/auto", s.compressorAuto)
			commands.POST("/system/parameters", s.systemParameters)
		}
	}
}
