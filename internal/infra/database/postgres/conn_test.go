package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/infra/database/postgres"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/pkg/config"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/journal"
)

func TestNewPool(t *testing.T) {
	// Skip if no database available
	t.Skip("Integration test - requires PostgreSQL")

	ctx := context.Background()

	cfg, err := config.Load()
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()

	health := pool.Health(ctx)
	assert.Equal(t, postgres.StatusHealthy, health.Status)
	assert.Greater(t, health.MaxConns, int32(0))
}

func TestJournalRepository(t *testing.T) {
	// Skip if no database available
	t.Skip("Integration test - requires PostgreSQL")

	ctx := context.Background()

	cfg, err := config.Load()
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()

	repo := postgres.NewJournalRepository(pool.Pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	at := time.Now().UTC().Truncate(time.Microsecond)
	err = repo.SaveEntries(ctx, []journal.Entry{{
		Kind:    market.EventOrderUpdate,
		Key:     "TEST-O1",
		Payload: json.RawMessage(`{"order_id":"TEST-O1","status":"OPEN"}`),
		At:      at,
	}})
	require.NoError(t, err)

	entries, err := repo.Latest(ctx, market.EventOrderUpdate, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "TEST-O1", entries[0].Key)
	assert.True(t, at.Equal(entries[0].At))
}
