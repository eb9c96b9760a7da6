package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/database/postgres"
)

type fakeDB struct {
	status string
}

func (f fakeDB) Health(ctx context.Context) *postgres.HealthStatus {
	return &postgres.HealthStatus{Status: f.status}
}

func TestHealthHandler(t *testing.T) {
	env := newDeskEnv(t)

	t.Run("liveness", func(t *testing.T) {
		h := NewHealthHandler(env.cache, nil, "1.2.3")
		rec := do(t, http.HandlerFunc(h.Health), http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	})

	t.Run("ready without database", func(t *testing.T) {
		h := NewHealthHandler(env.cache, nil, "dev")
		rec := do(t, http.HandlerFunc(h.Ready), http.MethodGet, "/health/ready", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ReadyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, market.StateConnected, resp.Connection.Status)
		assert.NotContains(t, resp.Checks, "database")
	})

	t.Run("degraded database is still ready", func(t *testing.T) {
		h := NewHealthHandler(env.cache, fakeDB{status: postgres.StatusDegraded}, "dev")
		rec := do(t, http.HandlerFunc(h.Ready), http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("database down", func(t *testing.T) {
		h := NewHealthHandler(env.cache, fakeDB{status: postgres.StatusUnhealthy}, "dev")
		rec := do(t, http.HandlerFunc(h.Ready), http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "Database connection failed")
	})

	t.Run("stopped cache", func(t *testing.T) {
		env.cache.Stop()
		h := NewHealthHandler(env.cache, nil, "dev")
		rec := do(t, http.HandlerFunc(h.Ready), http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp ReadyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "stopped", resp.Checks["cache"])
		assert.Equal(t, market.StateDisconnected, resp.Connection.Status)
	})
}
