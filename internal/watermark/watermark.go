// Package watermark persists the sync watermark: the timestamp of the newest
// event already delivered to the task store.
package watermark

import (
	"context"
	"errors"
	"fmt"
)

// None is the watermark before anything was synchronized.
const None int64 = -1

// ErrNotMonotonic is returned when a save would not move the watermark forward.
var ErrNotMonotonic = errors.New("watermark must strictly increase")

// Store loads and saves the watermark.
type Store interface {
	// Load returns the saved watermark, or None when nothing was saved.
	Load(ctx context.Context) (int64, error)
	// Advance moves the watermark to ts. ts must be greater than the saved value.
	Advance(ctx context.Context, ts int64) error
	// Set overwrites the watermark without the monotonic check.
	Set(ctx context.Context, ts int64) error
	// Reset forgets the watermark.
	Reset(ctx context.Context) error
}

// Check returns ErrNotMonotonic unless next > current.
func Check(current, next int64) error {
	if next <= current {
		return fmt.Errorf("%w: %d -> %d", ErrNotMonotonic, current, next)
	}
	return nil
}

// State is the persisted form of the watermark.
type State struct {
	LastTimestamp int64 `json:"last_timestamp"`
}
