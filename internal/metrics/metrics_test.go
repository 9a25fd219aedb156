// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

func TestObserverCounters(t *testing.T) {
	m := New(NewRegistry())

	m.FrameReceived(lockproto.KindTelemetry)
	m.FrameReceived(lockproto.KindTelemetry)
	m.FrameReceived(lockproto.KindAck)
	m.FrameRejected(&lockproto.CRCError{Expected: 1, Received: 2})
	m.FrameRejected(&lockproto.DecodeError{Length: 3})
	m.FrameRejected(errors.New("boom"))
	m.CommandSent(lockproto.FuncCompressor, nil)
	m.CommandSent(lockproto.FuncCompressor, errors.New("write"))
	m.AutoControl(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("TELEMETRY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("ACK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameErrorsTotal.WithLabelValues("crc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameErrorsTotal.WithLabelValues("decode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameErrorsTotal.WithLabelValues("other")))

	fn := lockproto.FormatFunction(lockproto.FuncCompressor)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues(fn, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues(fn, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutoControlTotal.WithLabelValues("start")))
}

func TestConnectionAndStateGauges(t *testing.T) {
	m := New(NewRegistry())

	m.ConnectionChanged(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
	m.ConnectionChanged(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))

	var locks lockproto.LockStates
	locks[0], locks[4] = true, true
	require.NoError(t, m.Notify(controller.State{
		CurrentTemperature: 6.5,
		SetPoint:           4,
		CompressorStatus:   lockproto.CompressorOn,
		Locks:              locks,
	}))

	assert.Equal(t, 6.5, testutil.ToFloat64(m.CurrentTemperature))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SetPoint))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompressorRunning))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpenLocks))
}

func TestHandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/status", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(Handler(reg)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/status", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "frostlock_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
