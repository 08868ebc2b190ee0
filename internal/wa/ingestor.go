// Package wa fills the archive from WhatsApp through a linked whatsmeow
// device.
package wa

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/matheus3301/fwdtodo/internal/archive"
	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultPollWindow = 20 * time.Second
	connectTimeout    = 30 * time.Second
)

// Options configures an Ingestor.
type Options struct {
	DeviceDB   string
	DeviceName string
	PollWindow time.Duration
}

// Ingestor connects the linked device for a bounded window per pass and
// records what the phone delivers: queued live messages and history syncs.
type Ingestor struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	adapter *Adapter
}

// NewIngestor creates an ingestor. The device store is opened on first use.
func NewIngestor(opts Options, logger *zap.Logger) *Ingestor {
	if opts.PollWindow <= 0 {
		opts.PollWindow = DefaultPollWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{opts: opts, logger: logger}
}

func (in *Ingestor) Source() chat.Source { return chat.SourceWhatsApp }

// Adapter returns the device adapter, opening the device store if needed.
func (in *Ingestor) Adapter(ctx context.Context) (*Adapter, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.adapter != nil {
		return in.adapter, nil
	}
	a, err := NewAdapter(ctx, in.opts.DeviceDB, in.opts.DeviceName, in.logger)
	if err != nil {
		return nil, err
	}
	in.adapter = a
	return a, nil
}

func (in *Ingestor) Ingest(ctx context.Context, rec *archive.Recorder) error {
	a, err := in.Adapter(ctx)
	if err != nil {
		return err
	}
	if !a.IsLoggedIn() {
		return ErrNotPaired
	}

	h := NewEventHandler(context.WithoutCancel(ctx), rec, a, in.logger)
	id := a.AddEventHandler(h.Handle)
	defer a.RemoveEventHandler(id)

	if err := a.Connect(); err != nil {
		return chat.Transient(fmt.Errorf("connect: %w", err))
	}
	defer a.Disconnect()

	select {
	case <-h.Connected():
	case <-time.After(connectTimeout):
		return chat.Transient(fmt.Errorf("connect: no connection after %s", connectTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}

	timer := time.NewTimer(in.opts.PollWindow)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return h.Err()
}

// Download decrypts the attachment of an archived message into dest.
func (in *Ingestor) Download(ctx context.Context, msg store.Message, dest string) error {
	a, err := in.Adapter(ctx)
	if err != nil {
		return err
	}
	if !a.IsLoggedIn() {
		return ErrNotPaired
	}
	data, err := a.Download(ctx, msg.Raw)
	if err != nil {
		return err
	}
	return writeFile(dest, data)
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
