package store

import (
	"context"
	"time"
)

// InsertTask adds t to the local todo list.
func (db *DB) InsertTask(ctx context.Context, t *Task) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO tasks (id, event_ts, heading, tags, body, done, created_at)
		VALUES (:id, :event_ts, :heading, :tags, :body, :done, :created_at)`, t)
	return err
}

// ListTasks returns local tasks oldest first. Done tasks are included only
// when all is set.
func (db *DB) ListTasks(ctx context.Context, all bool) ([]Task, error) {
	var tasks []Task
	err := db.SelectContext(ctx, &tasks, `
		SELECT id, event_ts, heading, tags, body, done, created_at
		FROM tasks
		WHERE ? OR done = 0
		ORDER BY event_ts, created_at`, all)
	return tasks, err
}

// CompleteTask marks a local task done. It reports whether the task exists.
func (db *DB) CompleteTask(ctx context.Context, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `UPDATE tasks SET done = 1 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordEmission appends e to the emission ledger.
func (db *DB) RecordEmission(ctx context.Context, e *Emission) error {
	if e.EmittedAt == 0 {
		e.EmittedAt = time.Now().UnixMilli()
	}
	res, err := db.NamedExecContext(ctx, `
		INSERT INTO emissions (event_ts, sink, handle, heading, emitted_at)
		VALUES (:event_ts, :sink, :handle, :heading, :emitted_at)`, e)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// RecentEmissions returns the latest ledger entries, newest first.
func (db *DB) RecentEmissions(ctx context.Context, limit int) ([]Emission, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Emission
	err := db.SelectContext(ctx, &out, `
		SELECT id, event_ts, sink, handle, heading, emitted_at
		FROM emissions
		ORDER BY emitted_at DESC, id DESC
		LIMIT ?`, limit)
	return out, err
}
