package tasks

import (
	"context"
	"io"
	"sync"
	"time"
)

// Writer renders tasks to w instead of storing them. It backs dry runs.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	loc *time.Location
}

// NewWriter returns a Writer printing org entries to w.
func NewWriter(w io.Writer, loc *time.Location) *Writer {
	return &Writer{w: w, loc: loc}
}

func (w *Writer) CreateTask(_ context.Context, t Task) (Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	RenderOrg(w.w, t, w.loc)
	return Handle(t.ID), nil
}
