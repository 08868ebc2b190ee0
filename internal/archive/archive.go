// Package archive serves the chat backend contract from the profile's SQLite
// archive. An Ingestor fills the archive from the live chat service before
// each pass.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/store"
	"go.uber.org/zap"
)

// Ingestor pulls new messages of one chat service into the archive.
type Ingestor interface {
	Source() chat.Source
	// Ingest records whatever the service delivers through rec. Failures the
	// service is expected to recover from are wrapped with chat.Transient.
	Ingest(ctx context.Context, rec *Recorder) error
	// Download writes the media of an archived message to dest.
	Download(ctx context.Context, msg store.Message, dest string) error
}

// Backend implements chat.Backend and chat.Refresher over the archive.
type Backend struct {
	db       *store.DB
	ingestor Ingestor
	source   chat.Source
	mediaDir string
	logger   *zap.Logger
}

// New creates a backend for the ingestor's source. ingestor may be nil to
// serve the archive as is.
func New(db *store.DB, ingestor Ingestor, source chat.Source, mediaDir string, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ingestor != nil {
		source = ingestor.Source()
	}
	return &Backend{db: db, ingestor: ingestor, source: source, mediaDir: mediaDir, logger: logger}
}

// Source returns the chat service served by b.
func (b *Backend) Source() chat.Source { return b.source }

// Refresh runs the ingestor once.
func (b *Backend) Refresh(ctx context.Context) error {
	if b.ingestor == nil {
		return nil
	}
	rec := NewRecorder(b.db, b.source, b.logger)
	before, _ := b.db.MessageCount(ctx, string(b.source))
	if err := b.ingestor.Ingest(ctx, rec); err != nil {
		return fmt.Errorf("ingest %s: %w", b.source, err)
	}
	after, _ := b.db.MessageCount(ctx, string(b.source))
	b.logger.Debug("archive refreshed",
		zap.String("source", string(b.source)),
		zap.Int("recorded", rec.Recorded()),
		zap.Int("new", after-before))
	return nil
}

func (b *Backend) ListDialogs(ctx context.Context) ([]chat.Dialog, error) {
	chats, err := b.db.ListChats(ctx, string(b.source))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	dialogs := make([]chat.Dialog, 0, len(chats))
	for _, c := range chats {
		dialogs = append(dialogs, chat.Dialog{ID: c.ChatID, Name: c.Name, IsUser: c.IsUser})
	}
	return dialogs, nil
}

func (b *Backend) ListMessages(ctx context.Context, d chat.Dialog, opts chat.ListOptions) ([]chat.RawMessage, error) {
	rows, err := b.db.ListMessages(ctx, store.MessageQuery{
		Source:     string(b.source),
		ChatID:     d.ID,
		After:      opts.After,
		PinnedOnly: opts.PinnedOnly,
		Limit:      opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]chat.RawMessage, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, ToRaw(rows[i]))
	}
	return out, nil
}

// ResolveSender derives the identity from the archived fields.
func (b *Backend) ResolveSender(_ context.Context, m chat.RawMessage) (chat.SenderIdentity, error) {
	id := chat.SenderIdentity{
		Forwarded: m.Forwarded,
		FromSelf:  m.FromSelf,
		ChatTitle: m.FwdChatTitle,
		Username:  m.Username,
		FirstName: m.FirstName,
		LastName:  m.LastName,
	}
	if m.Forwarded && id.ChatTitle == "" && id.Username == "" && id.FirstName == "" && id.LastName == "" {
		return id, chat.ErrUnknownSender
	}
	return id, nil
}

// DownloadMedia stores the media of m as name in the media directory.
func (b *Backend) DownloadMedia(ctx context.Context, m chat.RawMessage, name string) (string, error) {
	if b.ingestor == nil {
		return "", errors.New("no ingestor to download media")
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid media name %q", name)
	}
	dest := filepath.Join(b.mediaDir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	row, err := b.db.GetMessage(ctx, string(b.source), m.Dialog, m.ID)
	if err != nil {
		return "", fmt.Errorf("load message: %w", err)
	}
	if row == nil {
		return "", fmt.Errorf("message %s/%s not archived", m.Dialog, m.ID)
	}
	if err := os.MkdirAll(b.mediaDir, 0o700); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	// A failed transfer must never leave a file under the final name.
	tmp := filepath.Join(b.mediaDir, ".partial-"+name)
	if err := b.ingestor.Download(ctx, *row, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store media: %w", err)
	}
	b.logger.Info("media downloaded", zap.String("msg_id", m.ID), zap.String("path", dest))
	return dest, nil
}

// ToRaw converts an archived row to the message the engine consumes.
func ToRaw(r store.Message) chat.RawMessage {
	kind := chat.MediaKind(r.MediaKind)
	if !chat.KnownMediaKind(kind) {
		kind = chat.MediaUnknown
	}
	return chat.RawMessage{
		ID:        r.MsgID,
		Dialog:    r.ChatID,
		Timestamp: r.Timestamp,
		Text:      r.Text,
		Pinned:    r.Pinned,
		Media: chat.Media{
			Kind:        kind,
			URL:         r.MediaURL,
			Title:       r.MediaTitle,
			DisplayURL:  r.MediaDisplayURL,
			Description: r.MediaDescription,
			FileID:      r.MediaFileID,
			FileName:    r.MediaFileName,
			MimeType:    r.MediaMimeType,
			TypeName:    r.MediaTypeName,
		},
		Forwarded:    r.Forwarded,
		FromSelf:     r.FromSelf,
		FwdChatTitle: r.FwdChatTitle,
		Username:     r.FwdUsername,
		FirstName:    r.FwdFirstName,
		LastName:     r.FwdLastName,
	}
}
