package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
)

func TestDeskHandler_Snapshots(t *testing.T) {
	env := newDeskEnv(t).refreshed(t)
	h := env.routes()

	t.Run("quotes", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/quotes", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		var quotes []market.Quote
		require.NoError(t, json.Unmarshal(body.Data, &quotes))
		require.Len(t, quotes, 2)
		assert.Equal(t, "RELIANCE", quotes[0].Symbol)
		assert.Equal(t, 2, *body.Meta.Count)
	})

	t.Run("single quote is case-insensitive", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/quotes/infy", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var q market.Quote
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &q))
		assert.Equal(t, "1450", q.LTP.String())
	})

	t.Run("unknown quote", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/quotes/WIPRO", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("positions and orders", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/positions", "")
		assert.Equal(t, 1, *decode(t, rec).Meta.Count)

		rec = do(t, h, http.MethodGet, "/orders", "")
		var orders []market.Order
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &orders))
		require.Len(t, orders, 1)
		assert.Equal(t, "A1", orders[0].OrderID)
		assert.Equal(t, int64(5), orders[0].PendingQuantity)
	})

	t.Run("status", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/status", "")
		var status market.ConnectionStatus
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
		assert.Equal(t, market.StateConnected, status.Status)
		assert.Equal(t, []string{"RELIANCE", "INFY"}, status.Subscriptions)
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var stats map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
		assert.Contains(t, stats, "cache")
		assert.Contains(t, stats, "invoker")
		assert.NotContains(t, stats, "journal")
	})
}

func TestDeskHandler_Refresh(t *testing.T) {
	env := newDeskEnv(t)
	h := env.routes()

	rec := do(t, h, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.cache.Quotes(), 2)

	env.cache.Stop()
	rec = do(t, h, http.MethodPost, "/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeskHandler_SetVisibility(t *testing.T) {
	env := newDeskEnv(t)
	h := env.routes()

	rec := do(t, h, http.MethodPut, "/visibility", `{"visible":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.hub.Visible())
	assert.False(t, env.cache.Visible())

	rec = do(t, h, http.MethodPut, "/visibility", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "visible", decode(t, rec).Error.Fields[0].Field)

	rec = do(t, h, http.MethodPut, "/visibility", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/visibility", `{"visible":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.cache.Visible())
}
