// Package tasks delivers formatted records to a task store: an org outline,
// Remember The Milk, or the archive's local list.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/fwdtodo/internal/format"
)

// Task is one item handed to a Store.
type Task struct {
	ID        string
	Timestamp int64
	Heading   string
	Tags      []string
	Body      []string
	Scheduled time.Time
}

// Handle identifies a created task inside its store.
type Handle string

// Store creates tasks. Two tasks are never merged, even with equal headings.
type Store interface {
	CreateTask(ctx context.Context, t Task) (Handle, error)
}

// FromRecord builds a task for rec scheduled at now with a fresh id.
func FromRecord(rec format.Record, now time.Time) Task {
	return Task{
		ID:        uuid.NewString(),
		Timestamp: rec.Timestamp,
		Heading:   rec.Heading,
		Tags:      rec.Tags,
		Body:      rec.Body,
		Scheduled: now,
	}
}
