package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/houseprice/internal/database"
	"github.com/stwalsh4118/houseprice/internal/middleware"
	"github.com/stwalsh4118/houseprice/internal/services"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.1.0"
	// HealthCheckTimeout is the timeout for database health checks
	HealthCheckTimeout = 2 * time.Second
)

// Readiness component states.
const (
	stateLoaded        = "loaded"
	stateConnected     = "connected"
	stateDisconnected  = "disconnected"
	stateNotConfigured = "not_configured"
)

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db        database.Pinger
	service   services.PredictionService
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance.
// db may be nil when artifacts are read from files.
func NewHealthHandler(db database.Pinger, service services.PredictionService, env string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		service:   service,
		startTime: time.Now(),
		env:       env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string `json:"status"`
	Artifacts string `json:"artifacts"`
	Database  string `json:"database"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version        string `json:"version"`
	Environment    string `json:"environment"`
	Uptime         string `json:"uptime"`
	ModelVersion   string `json:"model_version"`
	ArtifactSource string `json:"artifact_source"`
	Locations      int    `json:"locations"`
}

// Health handles GET /health. It is a liveness check with no dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready.
// Artifacts are loaded before the router starts, so readiness only depends
// on the database when one is configured.
func (h *HealthHandler) Ready(c *gin.Context) {
	resp := ReadyResponse{
		Status:    "ready",
		Artifacts: stateLoaded,
		Database:  stateNotConfigured,
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
		defer cancel()

		if err := h.db.Ping(ctx); err != nil {
			if log := middleware.GetLogger(c); log != nil {
				log.Error("Database health check failed", err, map[string]interface{}{
					"timeout": HealthCheckTimeout.String(),
				})
			}
			resp.Status = "not_ready"
			resp.Database = stateDisconnected
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = stateConnected
	}

	c.JSON(http.StatusOK, resp)
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	info := h.service.ModelInfo()

	c.JSON(http.StatusOK, InfoResponse{
		Version:        APIVersion,
		Environment:    h.env,
		Uptime:         formatUptime(time.Since(h.startTime)),
		ModelVersion:   info.Version,
		ArtifactSource: info.Source,
		Locations:      info.LocationCount,
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
