package watermark

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/fwdtodo/internal/store"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{
		"file": NewFile(filepath.Join(dir, "state", "state.json")),
		"db":   NewDB(db),
	}
}

func TestLoadMissingIsNone(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Load(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got != None {
				t.Errorf("Load() = %d, want %d", got, None)
			}
		})
	}
}

func TestAdvanceIsMonotonic(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Advance(ctx, 1000); err != nil {
				t.Fatal(err)
			}
			if err := s.Advance(ctx, 1200); err != nil {
				t.Fatal(err)
			}
			for _, ts := range []int64{1200, 1100} {
				if err := s.Advance(ctx, ts); !errors.Is(err, ErrNotMonotonic) {
					t.Errorf("Advance(%d) err = %v, want ErrNotMonotonic", ts, err)
				}
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if got != 1200 {
				t.Errorf("Load() = %d, want 1200", got)
			}
		})
	}
}

func TestSetAndReset(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Advance(ctx, 500); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, 10); err != nil {
				t.Fatal(err)
			}
			if got, _ := s.Load(ctx); got != 10 {
				t.Errorf("after Set, Load() = %d, want 10", got)
			}
			if err := s.Reset(ctx); err != nil {
				t.Fatal(err)
			}
			if got, _ := s.Load(ctx); got != None {
				t.Errorf("after Reset, Load() = %d, want None", got)
			}
			if err := s.Reset(ctx); err != nil {
				t.Errorf("second Reset: %v", err)
			}
		})
	}
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	f := NewFile(path)
	if err := f.Advance(context.Background(), 1700000000); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"last_timestamp":1700000000}` {
		t.Errorf("state file = %s", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("state dir has %d entries, want only state.json", len(entries))
	}
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(path).Load(context.Background()); err == nil {
		t.Error("Load() of corrupt state succeeded")
	}
}

func TestFileWithoutTimestampIsNone(t *testing.T) {
	for _, doc := range []string{`{}`, `{"last_timestamp":null}`} {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatal(err)
		}
		got, err := NewFile(path).Load(context.Background())
		if err != nil {
			t.Fatalf("Load(%s): %v", doc, err)
		}
		if got != None {
			t.Errorf("Load(%s) = %d, want %d", doc, got, None)
		}
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		current, next int64
		ok            bool
	}{
		{None, 0, true},
		{None, 1, true},
		{5, 6, true},
		{5, 5, false},
		{5, 4, false},
	}
	for _, tt := range tests {
		err := Check(tt.current, tt.next)
		if (err == nil) != tt.ok {
			t.Errorf("Check(%d, %d) = %v, want ok=%v", tt.current, tt.next, err, tt.ok)
		}
	}
}
