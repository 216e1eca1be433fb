package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stco/stationrecon/internal/chart"
	"github.com/stco/stationrecon/internal/domain/model"
	"github.com/stco/stationrecon/internal/facet"
	"github.com/stco/stationrecon/internal/join"
	"github.com/stco/stationrecon/internal/metrics"
	"github.com/stco/stationrecon/internal/report"
)

// RunData is the immutable snapshot of one reconciliation run the API
// serves. Facets and series are recomputed per request; the snapshot itself
// never changes.
type RunData struct {
	Cells        []model.JoinedCell
	Groups       map[string]join.Groups
	Report       report.Report
	HasSetupData bool
}

// Server exposes the run snapshot over HTTP.
type Server struct {
	data     *RunData
	recorder metrics.Recorder
	engine   *gin.Engine
}

func New(data *RunData, recorder metrics.Recorder, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	s := &Server{data: data, recorder: recorder, engine: gin.New()}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Engine exposes the router; the application mounts it on its own
// http.Server, and tests drive it directly.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.recorder.Registry(), promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.GET("/facets", s.handleFacets)
	api.GET("/cells", s.handleCells)
	api.GET("/series/:gridkey", s.handleSeries)
	api.GET("/report", s.handleReport)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "cells": len(s.data.Cells)})
}

func (s *Server) handleFacets(c *gin.Context) {
	c.JSON(http.StatusOK, facet.Build(s.data.Cells, s.data.HasSetupData))
}

// handleCells returns the joined cells, optionally filtered by facet key.
func (s *Server) handleCells(c *gin.Context) {
	key := c.DefaultQuery("facet", facet.KeyAll)
	cells := facet.Filter(s.data.Cells, key)
	if cells == nil {
		cells = []model.JoinedCell{}
	}
	c.JSON(http.StatusOK, gin.H{"facet": key, "count": len(cells), "cells": cells})
}

// handleSeries shapes and returns the time-series bundle of one grid key.
func (s *Server) handleSeries(c *gin.Context) {
	raw := c.Param("gridkey")
	key, err := model.ParseGridKey(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	groups, ok := s.data.Groups[key.String()]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no telemetry for grid key " + raw})
		return
	}
	started := time.Now()
	bundle := chart.Shape(key, groups)
	s.recorder.RecordShape(time.Since(started))
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleReport(c *gin.Context) {
	c.JSON(http.StatusOK, s.data.Report)
}
