package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/response"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/database/postgres"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/realtime"
)

// DatabaseChecker reports database health (*postgres.Pool)
type DatabaseChecker interface {
	Health(ctx context.Context) *postgres.HealthStatus
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cache     *realtime.Cache
	db        DatabaseChecker // nil when the journal is disabled
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cache *realtime.Cache, db DatabaseChecker, version string) *HealthHandler {
	return &HealthHandler{
		cache:     cache,
		db:        db,
		startTime: time.Now(),
		version:   version,
	}
}

// SimpleHealthResponse represents a simple health check response
type SimpleHealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReadyResponse represents a readiness check response
type ReadyResponse struct {
	Status     string                  `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Checks     map[string]string       `json:"checks"`
	Connection market.ConnectionStatus `json:"connection"`
	Message    string                  `json:"message,omitempty"`
}

// Health returns simple liveness check
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, SimpleHealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
	})
}

// Ready returns readiness: the cache must be running and the database (if any) reachable.
// The backend connection status is reported but does not gate readiness.
// GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	allReady := true
	message := ""

	if h.cache.IsRunning() {
		checks["cache"] = "ok"
	} else {
		checks["cache"] = "stopped"
		allReady = false
		message = "Realtime cache is not running"
	}

	if h.db != nil {
		dbHealth := h.db.Health(r.Context())
		if dbHealth.Status == postgres.StatusUnhealthy {
			checks["database"] = "error"
			allReady = false
			if message == "" {
				message = "Database connection failed"
			}
		} else {
			checks["database"] = "ok"
		}
	}

	status := "ready"
	statusCode := http.StatusOK

	if !allReady {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	response.JSON(w, statusCode, ReadyResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Checks:     checks,
		Connection: h.cache.ConnectionStatus(),
		Message:    message,
	})
}
