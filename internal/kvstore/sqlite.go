package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteStore persists slots in the kv_slots table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store backed by an open database connection
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_slots WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}

	return json.RawMessage(value), true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("slot %s: value is not valid JSON", key)
	}

	query := `
		INSERT INTO kv_slots (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = datetime('now')
	`

	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}

	return nil
}
