package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the subset of pgx operations the store needs. Satisfied by
// *pgxpool.Pool and pgx.Tx; defined here so tests can substitute a mock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists threads in PostgreSQL. The whole thread is written as
// one row with JSONB histories, so a save is a single atomic upsert.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// NewStore creates a Store on the given querier.
func NewStore(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const upsertThreadSQL = `
INSERT INTO threads (id, user_id, model, status, messages, thinking_items, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    model          = EXCLUDED.model,
    status         = EXCLUDED.status,
    messages       = EXCLUDED.messages,
    thinking_items = EXCLUDED.thinking_items,
    updated_at     = EXCLUDED.updated_at`

// Save upserts the thread. Saving the same state twice is a no-op at the
// row level, so retrying after a partial failure is safe.
func (s *Store) Save(ctx context.Context, t *Thread) error {
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("%w: marshaling messages for thread %s: %v", ErrPersistence, t.ID, err)
	}
	items, err := json.Marshal(t.ThinkingItems)
	if err != nil {
		return fmt.Errorf("%w: marshaling thinking items for thread %s: %v", ErrPersistence, t.ID, err)
	}

	_, err = s.db.Exec(ctx, upsertThreadSQL,
		uuidToPgUUID(t.ID), t.UserID, t.Model, t.Status,
		messages, items, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: saving thread %s: %v", ErrPersistence, t.ID, err)
	}

	s.logger.Debug("saved thread",
		"thread_id", t.ID,
		"status", t.Status,
		"messages", len(t.Messages),
		"thinking_items", len(t.ThinkingItems))
	return nil
}

const getThreadSQL = `
SELECT id, user_id, model, status, messages, thinking_items, created_at, updated_at
FROM threads
WHERE id = $1`

// Get loads a thread by ID. Returns ErrNotFound when no row exists.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Thread, error) {
	var (
		t        Thread
		pgID     pgtype.UUID
		messages []byte
		items    []byte
	)
	row := s.db.QueryRow(ctx, getThreadSQL, uuidToPgUUID(id))
	err := row.Scan(&pgID, &t.UserID, &t.Model, &t.Status, &messages, &items, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", id, err)
	}

	t.ID = pgUUIDToUUID(pgID)
	if err := json.Unmarshal(messages, &t.Messages); err != nil {
		return nil, fmt.Errorf("unmarshaling messages for thread %s: %w", id, err)
	}
	if err := json.Unmarshal(items, &t.ThinkingItems); err != nil {
		return nil, fmt.Errorf("unmarshaling thinking items for thread %s: %w", id, err)
	}
	return &t, nil
}

// uuidToPgUUID converts uuid.UUID to pgtype.UUID.
func uuidToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDToUUID converts pgtype.UUID to uuid.UUID.
func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	return pgUUID.Bytes
}
