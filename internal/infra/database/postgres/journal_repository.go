package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/market"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/service/journal"
)

// JournalRepository implements journal.Repository using PostgreSQL
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new JournalRepository
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

const journalSchema = `
	CREATE SCHEMA IF NOT EXISTS desk;

	CREATE TABLE IF NOT EXISTS desk.journal (
		id          BIGSERIAL PRIMARY KEY,
		kind        TEXT        NOT NULL,
		key         TEXT        NOT NULL,
		payload     JSONB       NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		created_ts  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS journal_kind_key_idx ON desk.journal (kind, key, recorded_at DESC);
`

// EnsureSchema creates the journal table if it does not exist
func (r *JournalRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, journalSchema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

// SaveEntries appends a batch of entries with COPY
func (r *JournalRepository) SaveEntries(ctx context.Context, entries []journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{string(e.Kind), e.Key, []byte(e.Payload), e.At})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"desk", "journal"},
		[]string{"kind", "key", "payload", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("save journal entries: %w", err)
	}
	return nil
}

// Latest returns the most recent entries of a kind, newest first
func (r *JournalRepository) Latest(ctx context.Context, kind market.EventType, limit int) ([]journal.Entry, error) {
	query := `
		SELECT kind, key, payload, recorded_at
		FROM desk.journal
		WHERE kind = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var (
			e       journal.Entry
			k       string
			payload []byte
			at      time.Time
		)
		if err := rows.Scan(&k, &e.Key, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Kind = market.EventType(k)
		e.Payload = payload
		e.At = at
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
