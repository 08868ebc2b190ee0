package archive

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/store"
	"go.uber.org/zap"
)

// Recorder is handed to an Ingestor to write into the archive. Every write is
// idempotent, so a service redelivering messages is harmless.
type Recorder struct {
	db       *store.DB
	source   chat.Source
	logger   *zap.Logger
	recorded atomic.Int64
}

// NewRecorder creates a recorder for source.
func NewRecorder(db *store.DB, source chat.Source, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, source: source, logger: logger}
}

// Chat records a dialog and its display name.
func (r *Recorder) Chat(ctx context.Context, chatID, name string, isUser bool) error {
	if err := r.db.UpsertChat(ctx, &store.Chat{
		Source: string(r.source),
		ChatID: chatID,
		Name:   name,
		IsUser: isUser,
	}); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

// Message records a single message.
func (r *Recorder) Message(ctx context.Context, m *store.Message) error {
	return r.Batch(ctx, []*store.Message{m})
}

// Batch records messages in one transaction.
func (r *Recorder) Batch(ctx context.Context, msgs []*store.Message) error {
	for _, m := range msgs {
		m.Source = string(r.source)
	}
	if err := r.db.UpsertMessages(ctx, msgs); err != nil {
		return fmt.Errorf("upsert messages: %w", err)
	}
	r.recorded.Add(int64(len(msgs)))
	return nil
}

// Pin sets the pinned flag of an archived message. Pins of messages the
// archive never saw are logged and dropped.
func (r *Recorder) Pin(ctx context.Context, chatID, msgID string, pinned bool) error {
	found, err := r.db.MarkPinned(ctx, string(r.source), chatID, msgID, pinned)
	if err != nil {
		return fmt.Errorf("mark pinned: %w", err)
	}
	if !found {
		r.logger.Debug("pin for unknown message", zap.String("chat_id", chatID), zap.String("msg_id", msgID))
	}
	return nil
}

// Recorded returns how many messages were written.
func (r *Recorder) Recorded() int { return int(r.recorded.Load()) }
