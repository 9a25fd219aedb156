// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes controller activity to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

const namespace = "frostlock"

// NewRegistry returns a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics implements controller.Observer and controller.Notifier
type Metrics struct {
	FramesTotal        *prometheus.CounterVec // labels: kind
	FrameErrorsTotal   *prometheus.CounterVec // labels: reason
	CommandsTotal      *prometheus.CounterVec // labels: function, result
	AutoControlTotal   *prometheus.CounterVec // labels: action
	Connected          prometheus.Gauge
	CurrentTemperature prometheus.Gauge
	SetPoint           prometheus.Gauge
	CompressorRunning  prometheus.Gauge
	OpenLocks          prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec   // labels: method, path, status
	HTTPDuration       *prometheus.HistogramVec // labels: method, path, status
}

// New registers and returns the frostlock metrics
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames received from the appliance by kind.",
		}, []string{"kind"}),
		FrameErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Received buffers rejected by reason.",
		}, []string{"reason"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Commands written to the appliance.",
		}, []string{"function", "result"}),
		AutoControlTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_control_actions_total",
			Help:      "Compressor commands issued by automatic control.",
		}, []string{"action"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the serial link is open.",
		}),
		CurrentTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_temperature_celsius",
			Help:      "Last reported cabinet temperature.",
		}),
		SetPoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_point_celsius",
			Help:      "Last reported set point.",
		}),
		CompressorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compressor_running",
			Help:      "1 while the compressor reports ON.",
		}),
		OpenLocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_locks",
			Help:      "Number of locks currently reported open.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	reg.MustRegister(
		m.FramesTotal, m.FrameErrorsTotal, m.CommandsTotal, m.AutoControlTotal,
		m.Connected, m.CurrentTemperature, m.SetPoint, m.CompressorRunning, m.OpenLocks,
		m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

// FrameReceived implements controller.Observer
func (m *Metrics) FrameReceived(kind lockproto.Kind) {
	m.FramesTotal.WithLabelValues(kind.String()).Inc()
}

// FrameRejected implements controller.Observer
func (m *Metrics) FrameRejected(err error) {
	m.FrameErrorsTotal.WithLabelValues(rejectReason(err)).Inc()
}

func rejectReason(err error) string {
	var decodeErr *lockproto.DecodeError
	switch {
	case errors.Is(err, lockproto.ErrCRCMismatch):
		return "crc"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "other"
	}
}

// CommandSent implements controller.Observer
func (m *Metrics) CommandSent(function uint8, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CommandsTotal.WithLabelValues(lockproto.FormatFunction(function), result).Inc()
}

// AutoControl implements controller.Observer
func (m *Metrics) AutoControl(start bool) {
	action := "stop"
	if start {
		action = "start"
	}
	m.AutoControlTotal.WithLabelValues(action).Inc()
}

// ConnectionChanged implements controller.Observer
func (m *Metrics) ConnectionChanged(connected bool) {
	m.Connected.Set(boolGauge(connected))
}

// Notify implements controller.Notifier
func (m *Metrics) Notify(s controller.State) error {
	m.CurrentTemperature.Set(s.CurrentTemperature)
	m.SetPoint.Set(s.SetPoint)
	m.CompressorRunning.Set(boolGauge(s.CompressorStatus == lockproto.CompressorOn))
	m.OpenLocks.Set(float64(len(s.Locks.Open())))
	return nil
}

// GinMiddleware records request counts and latency by route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var (
	_ controller.Observer = (*Metrics)(nil)
	_ controller.Notifier = (*Metrics)(nil)
)
