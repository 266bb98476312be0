package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

// SQLStateRepository stores each user's state as one JSON row. It works against both
// Postgres and SQLite; placeholders are rebound for the connected driver.
type SQLStateRepository struct {
	db      *sqlx.DB
	rootKey string
}

type stateRow struct {
	StateKey string    `db:"state_key"`
	UserID   string    `db:"user_id"`
	Payload  string    `db:"payload"`
	SavedAt  time.Time `db:"saved_at"`
}

// NewSQLStateRepository constructs the repository.
func NewSQLStateRepository(db *sqlx.DB, rootKey string) *SQLStateRepository {
	return &SQLStateRepository{db: db, rootKey: rootKey}
}

// Load implements session.StateRepository.
func (r *SQLStateRepository) Load(ctx context.Context, userID string) (*models.SessionState, error) {
	query := r.db.Rebind(`SELECT state_key, user_id, payload, saved_at FROM session_states WHERE state_key = ?`)
	var row stateRow
	if err := r.db.GetContext(ctx, &row, query, StateKey(r.rootKey, userID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrStateNotFound
		}
		return nil, fmt.Errorf("load session state: %w", err)
	}
	return decodeState([]byte(row.Payload))
}

// Save implements session.StateRepository.
func (r *SQLStateRepository) Save(ctx context.Context, userID string, state models.SessionState) error {
	payload, err := encodeState(state)
	if err != nil {
		return err
	}
	savedAt := state.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`INSERT INTO session_states (state_key, user_id, payload, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (state_key)
DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`)
	if _, err := r.db.ExecContext(ctx, query, StateKey(r.rootKey, userID), userID, string(payload), savedAt); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLStateRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
