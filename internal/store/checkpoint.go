package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// SetCheckpoint updates a sync checkpoint value.
func (db *DB) SetCheckpoint(ctx context.Context, key, value string) error {
	return setCheckpoint(ctx, db.DB, key, value)
}

// GetCheckpoint retrieves a sync checkpoint value. ok is false when the key
// was never set.
func (db *DB) GetCheckpoint(ctx context.Context, key string) (value string, ok bool, err error) {
	return getCheckpoint(ctx, db.DB, key)
}

// UpdateCheckpoint reads key and writes what fn returns, in one transaction.
// An error from fn aborts the update.
func (db *DB) UpdateCheckpoint(ctx context.Context, key string, fn func(old string, ok bool) (string, error)) error {
	return db.InTx(ctx, func(tx *sqlx.Tx) error {
		old, ok, err := getCheckpoint(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(old, ok)
		if err != nil {
			return err
		}
		return setCheckpoint(ctx, tx, key, next)
	})
}

// DeleteCheckpoint removes key.
func (db *DB) DeleteCheckpoint(ctx context.Context, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sync_state WHERE key = ?`, key)
	return err
}

func setCheckpoint(ctx context.Context, ex sqlx.ExecerContext, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

func getCheckpoint(ctx context.Context, q sqlx.QueryerContext, key string) (string, bool, error) {
	var value string
	err := sqlx.GetContext(ctx, q, &value, `SELECT value FROM sync_state WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
