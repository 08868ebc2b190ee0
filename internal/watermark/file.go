package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File keeps the watermark in a small JSON document.
type File struct {
	path string
}

// NewFile returns a store backed by the JSON file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the state file location.
func (f *File) Path() string { return f.path }

func (f *File) Load(_ context.Context) (int64, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return None, nil
	}
	if err != nil {
		return None, fmt.Errorf("read state: %w", err)
	}
	st := State{LastTimestamp: None}
	if err := json.Unmarshal(data, &st); err != nil {
		return None, fmt.Errorf("parse state %s: %w", f.path, err)
	}
	return st.LastTimestamp, nil
}

func (f *File) Advance(ctx context.Context, ts int64) error {
	current, err := f.Load(ctx)
	if err != nil {
		return err
	}
	if err := Check(current, ts); err != nil {
		return err
	}
	return f.write(ts)
}

func (f *File) Set(_ context.Context, ts int64) error {
	return f.write(ts)
}

func (f *File) Reset(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

// write replaces the state file atomically: a reader sees either the old or
// the new document, never a partial one.
func (f *File) write(ts int64) error {
	data, err := json.Marshal(State{LastTimestamp: ts})
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
