package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/fwdtodo/internal/store"
)

// LocalList keeps tasks in the archive's tasks table.
type LocalList struct {
	db *store.DB
}

// NewLocalList returns a store writing to db.
func NewLocalList(db *store.DB) *LocalList {
	return &LocalList{db: db}
}

func (l *LocalList) CreateTask(ctx context.Context, t Task) (Handle, error) {
	row := &store.Task{
		ID:      t.ID,
		EventTS: t.Timestamp,
		Heading: t.Heading,
		Tags:    strings.Join(t.Tags, " "),
		Body:    strings.Join(t.Body, "\n"),
	}
	if !t.Scheduled.IsZero() {
		row.CreatedAt = t.Scheduled.UnixMilli()
	}
	if err := l.db.InsertTask(ctx, row); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return Handle(t.ID), nil
}
