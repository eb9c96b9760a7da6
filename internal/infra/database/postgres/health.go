package postgres

import (
	"context"
	"fmt"
	"time"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// healthPingTimeout bounds the readiness ping
const healthPingTimeout = 3 * time.Second

// HealthStatus represents journal database health
type HealthStatus struct {
	Status       string    `json:"status"`        // healthy, degraded, unhealthy
	ResponseTime string    `json:"response_time"` // e.g., "5ms"
	ActiveConns  int32     `json:"active_conns"`
	IdleConns    int32     `json:"idle_conns"`
	TotalConns   int32     `json:"total_conns"`
	MaxConns     int32     `json:"max_conns"`
	CheckedAt    time.Time `json:"checked_at"`
	Error        string    `json:"error,omitempty"`
}

// Health pings the database and reports pool usage.
// A pool with every connection acquired is degraded: the journal flush will queue behind API reads.
func (p *Pool) Health(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{CheckedAt: start, Status: StatusHealthy}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	err := p.Ping(pingCtx)
	status.ResponseTime = time.Since(start).String()
	if err != nil {
		status.Status = StatusUnhealthy
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return status
	}

	stats := p.Stat()
	status.ActiveConns = stats.AcquiredConns()
	status.IdleConns = stats.IdleConns()
	status.TotalConns = stats.TotalConns()
	status.MaxConns = stats.MaxConns()

	if status.MaxConns > 0 && status.ActiveConns >= status.MaxConns {
		status.Status = StatusDegraded
		status.Error = "connection pool exhausted"
	}

	return status
}
