package watermark

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/fwdtodo/internal/store"
)

// CheckpointKey is the sync_state key holding the watermark.
const CheckpointKey = "watermark"

// DB keeps the watermark in the archive's sync_state table.
type DB struct {
	db *store.DB
}

// NewDB returns a store backed by the archive database.
func NewDB(db *store.DB) *DB {
	return &DB{db: db}
}

func (d *DB) Load(ctx context.Context) (int64, error) {
	v, ok, err := d.db.GetCheckpoint(ctx, CheckpointKey)
	if err != nil {
		return None, fmt.Errorf("read watermark: %w", err)
	}
	if !ok {
		return None, nil
	}
	return parse(v)
}

func (d *DB) Advance(ctx context.Context, ts int64) error {
	return d.db.UpdateCheckpoint(ctx, CheckpointKey, func(old string, ok bool) (string, error) {
		current := None
		if ok {
			var err error
			if current, err = parse(old); err != nil {
				return "", err
			}
		}
		if err := Check(current, ts); err != nil {
			return "", err
		}
		return strconv.FormatInt(ts, 10), nil
	})
}

func (d *DB) Set(ctx context.Context, ts int64) error {
	return d.db.SetCheckpoint(ctx, CheckpointKey, strconv.FormatInt(ts, 10))
}

func (d *DB) Reset(ctx context.Context) error {
	return d.db.DeleteCheckpoint(ctx, CheckpointKey)
}

func parse(v string) (int64, error) {
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return None, fmt.Errorf("parse watermark %q: %w", v, err)
	}
	return ts, nil
}
