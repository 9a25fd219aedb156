// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Thermoquad/frostlock/internal/controller"
	"github.com/Thermoquad/frostlock/internal/transport"
	"github.com/Thermoquad/frostlock/pkg/lockproto"
)

func (s *Server) healthCheck(c *gin.Context) {
	state := s.ctrl.State()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": state.Connected,
	})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.State())
}

func (s *Server) getStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, newStatisticsResponse(s.ctrl.Statistics(), s.hub.ClientCount()))
}

func (s *Server) setTemperature(c *gin.Context) {
	var req temperatureRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Temperature == nil {
		badRequest(c, "missing 'temperature' field")
		return
	}

	if err := s.ctrl.SetTemperature(*req.Temperature); err != nil {
		s.commandError(c, err)
		return
	}
	success(c, fmt.Sprintf("set temperature command sent: %g°C", *req.Temperature))
}

func (s *Server) setDeviation(c *gin.Context) {
	var req deviationRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Deviation == nil {
		badRequest(c, "missing 'deviation' field")
		return
	}

	if err := s.ctrl.SetTemperatureDeviation(*req.Deviation); err != nil {
		s.commandError(c, err)
		return
	}
	success(c, fmt.Sprintf("set deviation command sent: %d°C", *req.Deviation))
}

func (s *Server) openLocks(c *gin.Context) {
	var req openLocksRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Indices == nil {
		badRequest(c, "missing 'indices' field")
		return
	}

	if err := s.ctrl.OpenLocks(req.Indices); err != nil {
		s.commandError(c, err)
		return
	}
	success(c, fmt.Sprintf("open locks command sent: %v", req.Indices))
}

func (s *Server) compressorManual(c *gin.Context) {
	var req compressorRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Start == nil {
		badRequest(c, "missing 'start' field")
		return
	}

	if err := s.ctrl.ControlCompressorManual(*req.Start); err != nil {
		s.commandError(c, err)
		return
	}
	action := "stop"
	if *req.Start {
		action = "start"
	}
	success(c, fmt.Sprintf("manual compressor %s command sent", action))
}

func (s *Server) compressorAuto(c *gin.Context) {
	var req autoControlRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Enable == nil {
		badRequest(c, "missing 'enable' field")
		return
	}

	s.ctrl.EnableAutoCompressorControl(*req.Enable)
	status := "disabled"
	if *req.Enable {
		status = "enabled"
	}
	success(c, "automatic temperature control "+status)
}

func (s *Server) systemParameters(c *gin.Context) {
	var req systemParametersRequest
	if !bindJSON(c, &req) {
		return
	}

	params, err := req.toParameters()
	if err != nil {
		s.commandError(c, err)
		return
	}
	if err := s.ctrl.SetSystemParameters(params); err != nil {
		s.commandError(c, err)
		return
	}
	success(c, "system parameters command sent")
}

// commandError maps controller errors onto status codes
func (s *Server) commandError(c *gin.Context, err error) {
	var validation *lockproto.ValidationError
	var channel *transport.ChannelError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.Is(err, controller.ErrNotConnected):
		status = http.StatusServiceUnavailable
	case errors.As(err, &channel):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn("Command failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func success(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, successResponse{Status: "success", Message: msg})
}
