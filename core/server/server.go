package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richd0tcom/waypoint/internal/analytics"
	"github.com/richd0tcom/waypoint/internal/audit"
	"github.com/richd0tcom/waypoint/internal/command"
	"github.com/richd0tcom/waypoint/internal/db"
	"github.com/richd0tcom/waypoint/internal/domain"
	"github.com/richd0tcom/waypoint/internal/metrics"
	"github.com/richd0tcom/waypoint/internal/worker"
)

type Server struct {
	config     *ServerConfig
	registry   *command.Registry
	dispatcher *command.Dispatcher
	worker     *worker.Worker
	feed       *audit.Feed

	distance *analytics.DistanceAggregator
	health   *analytics.HealthReporter
	uptime   *analytics.UptimeScorer

	router *gin.Engine
}

func NewServer(options ...ConfigOption) (*Server, error) {
	config := &ServerConfig{
		WorkerCount:     4,
		UplinkQueueSize: 1024,
		Port:            "8080",
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	if config.Log == nil {
		config.Log = slog.Default()
	}
	if config.Broker == nil {
		return nil, fmt.Errorf("no message broker configured")
	}
	if config.Commands == nil || config.Geofences == nil || config.Telemetry == nil {
		return nil, fmt.Errorf("no persistence configured")
	}

	var feed *audit.Feed
	if config.KafkaBrokers != "" {
		f, err := audit.NewFeed(config.KafkaBrokers, config.KafkaTopic, config.Log)
		if err != nil {
			return nil, err
		}
		feed = f
	}

	registry := command.Default()
	dispatcher := command.NewDispatcher(registry, config.Broker, config.Commands, config.Geofences, feed, config.Log)
	tracker := command.NewTracker(config.Commands, feed, config.Log)
	uplinkWorker := worker.New(config.Telemetry, tracker, config.Cache, feed, config.Log, config.WorkerCount, config.UplinkQueueSize)

	server := &Server{
		config:     config,
		registry:   registry,
		dispatcher: dispatcher,
		worker:     uplinkWorker,
		feed:       feed,
		distance:   analytics.NewDistanceAggregator(config.Telemetry),
		health:     analytics.NewHealthReporter(config.Telemetry),
		uptime:     analytics.NewUptimeScorer(config.Telemetry),
		router:     gin.Default(),
	}

	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		devices := api.Group("/devices/:imei", s.requireIMEI)
		devices.POST("/commands", s.handleDispatch)
		devices.GET("/commands", s.handleCommandHistory)
		devices.GET("/commands/latest", s.handleLatestCommand)
		devices.GET("/geofences", s.handleGeofences)
		devices.GET("/telemetry", s.handleTelemetry)
		devices.GET("/state", s.handleState)
		devices.GET("/live", s.handleLive)
		devices.GET("/analytics/distance", s.handleDistance)
		devices.GET("/analytics/health", s.handleHealthSnapshot)
		devices.GET("/analytics/uptime", s.handleUptime)
		devices.GET("/analytics/report", s.handleReport)
	}
}

func (s *Server) requireIMEI(c *gin.Context) {
	if !command.ValidIMEI(c.Param("imei")) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":   "VALIDATION_ERROR",
			"detail": "imei must be a 15-digit numeric string",
		})
	}
}

type dispatchRequest struct {
	Command string         `json:"command" binding:"required"`
	Params  map[string]any `json:"params"`
}

func (s *Server) handleDispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "detail": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	receipt, err := s.dispatcher.Dispatch(ctx, c.Param("imei"), req.Command, req.Params)
	if err != nil {
		var validationErr *command.ValidationError
		var transportErr *command.TransportError
		var persistErr *command.PersistenceError

		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "detail": validationErr.Error()})
		case errors.Is(err, command.ErrUnsupportedCommand):
			c.JSON(http.StatusBadRequest, gin.H{"code": "UNSUPPORTED_COMMAND", "detail": err.Error()})
		case errors.As(err, &transportErr):
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": "TRANSPORT_ERROR", "detail": "failed to publish command to the broker"})
		case errors.As(err, &persistErr):
			// the command did reach the broker; warning, not failure
			c.JSON(http.StatusAccepted, gin.H{"code": "PERSISTENCE_WARNING", "detail": persistErr.Error(), "receipt": receipt})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "dispatch failed"})
		}
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleCommandHistory(c *gin.Context) {
	limit := queryInt(c, "limit", 100)

	commands, err := s.config.Commands.ListByIMEI(c.Request.Context(), c.Param("imei"), int64(limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to load command history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imei": c.Param("imei"), "count": len(commands), "data": commands})
}

func (s *Server) handleLatestCommand(c *gin.Context) {
	cmd, err := s.config.Commands.LatestByIMEI(c.Request.Context(), c.Param("imei"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to load command"})
		return
	}
	if cmd == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "detail": "no command found"})
		return
	}
	c.JSON(http.StatusOK, cmd)
}

func (s *Server) handleGeofences(c *gin.Context) {
	regions, err := s.config.Geofences.ListByIMEI(c.Request.Context(), c.Param("imei"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to load geofences"})
		return
	}
	if regions == nil {
		regions = []domain.GeofenceRegion{}
	}
	c.JSON(http.StatusOK, gin.H{"imei": c.Param("imei"), "count": len(regions), "data": regions})
}

func (s *Server) handleTelemetry(c *gin.Context) {
	limit := queryInt(c, "limit", 100)

	records, err := s.config.Telemetry.ListByIMEI(c.Request.Context(), c.Param("imei"), int64(limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to load telemetry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imei": c.Param("imei"), "count": len(records), "data": records})
}

func (s *Server) handleState(c *gin.Context) {
	if s.config.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "STATE_CACHE_DISABLED", "detail": "no state cache configured"})
		return
	}

	snapshot, err := s.config.Cache.Get(c.Request.Context(), c.Param("imei"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to load device state"})
		return
	}
	if len(snapshot) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "detail": "no recent state for device"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleDistance(c *gin.Context) {
	metrics.IncAnalyticsQuery("distance")

	buckets, err := s.distance.Last24h(c.Request.Context(), c.Param("imei"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to aggregate distance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imei": c.Param("imei"), "buckets": buckets})
}

func (s *Server) handleHealthSnapshot(c *gin.Context) {
	metrics.IncAnalyticsQuery("health")

	snapshot, err := s.health.Snapshot(c.Request.Context(), c.Param("imei"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to build health snapshot"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleUptime(c *gin.Context) {
	metrics.IncAnalyticsQuery("uptime")

	report, err := s.uptime.Uptime(c.Request.Context(), c.Param("imei"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to compute uptime"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleReport(c *gin.Context) {
	metrics.IncAnalyticsQuery("report")
	imei := c.Param("imei")
	ctx := c.Request.Context()

	buckets, err := s.distance.Last24h(ctx, imei)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to aggregate distance"})
		return
	}
	uptimeReport, err := s.uptime.Uptime(ctx, imei)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to compute uptime"})
		return
	}
	healthSnapshot, err := s.health.Snapshot(ctx, imei)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to build health snapshot"})
		return
	}

	report := &analytics.ActivityReport{
		IMEI:        imei,
		GeneratedAt: time.Now().UTC(),
		Buckets:     buckets,
		Uptime:      uptimeReport,
		Health:      healthSnapshot,
	}

	switch c.DefaultQuery("format", "xlsx") {
	case "pdf":
		data, err := analytics.BuildActivityPDF(report)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to render report"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=activity_%s.pdf", imei))
		c.Data(http.StatusOK, "application/pdf", data)
	case "xlsx":
		data, err := analytics.BuildActivityXLSX(report)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "detail": "failed to render report"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=activity_%s.xlsx", imei))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "detail": "format must be xlsx or pdf"})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.config.MongoClient != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, s.config.MongoClient); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "degraded", "detail": "database is not responding"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.worker.Start(ctx, s.config.Broker); err != nil {
			s.config.Log.Error("uplink worker error", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    ":" + s.config.Port,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	s.config.Log.Info("server starting", "port", s.config.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Close() error {
	if s.config.Broker != nil {
		s.config.Broker.Close()
	}
	if s.config.Cache != nil {
		s.config.Cache.Close()
	}
	s.feed.Close()
	if s.config.MongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.config.MongoClient.Disconnect(ctx)
	}
	return nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
