package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/store"
)

type fakeIngestor struct {
	ingest    func(ctx context.Context, rec *Recorder) error
	downloads int
	failDL    bool
}

func (f *fakeIngestor) Source() chat.Source { return chat.SourceTelegram }

func (f *fakeIngestor) Ingest(ctx context.Context, rec *Recorder) error {
	if f.ingest == nil {
		return nil
	}
	return f.ingest(ctx, rec)
}

func (f *fakeIngestor) Download(_ context.Context, m store.Message, dest string) error {
	f.downloads++
	if f.failDL {
		return errors.New("file expired")
	}
	return os.WriteFile(dest, []byte("bytes of "+m.MediaFileID), 0o600)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(ctx context.Context, rec *Recorder) error {
	if err := rec.Chat(ctx, "100", "todo", false); err != nil {
		return err
	}
	if err := rec.Chat(ctx, "200", "alice", true); err != nil {
		return err
	}
	if err := rec.Batch(ctx, []*store.Message{
		{ChatID: "100", MsgID: "1", Timestamp: 1000, Text: "hello", Forwarded: true, FwdUsername: "alice"},
		{ChatID: "100", MsgID: "2", Timestamp: 1000, Forwarded: true, MediaKind: "webpage", MediaURL: "http://x", MediaTitle: "X"},
		{ChatID: "100", MsgID: "3", Timestamp: 1100, Forwarded: true},
		{ChatID: "200", MsgID: "9", Timestamp: 900, Text: "pin me", FwdUsername: "alice"},
		{ChatID: "100", MsgID: "4", Timestamp: 1200, MediaKind: "sticker"},
	}); err != nil {
		return err
	}
	return rec.Pin(ctx, "200", "9", true)
}

func TestBackendRefreshAndList(t *testing.T) {
	db := testDB(t)
	ing := &fakeIngestor{ingest: seed}
	b := New(db, ing, "", t.TempDir(), nil)
	ctx := context.Background()

	if err := b.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	// A redelivery changes nothing.
	if err := b.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	dialogs, err := b.ListDialogs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dialogs) != 2 || dialogs[0].Name != "alice" || !dialogs[0].IsUser || dialogs[1].Name != "todo" {
		t.Fatalf("dialogs = %+v", dialogs)
	}

	msgs, err := b.ListMessages(ctx, dialogs[1], chat.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[0].ID != "4" || msgs[0].Media.Kind != chat.MediaUnknown {
		t.Errorf("newest = %+v, want sticker as unknown media", msgs[0])
	}
	if msgs[3].ID != "1" || msgs[3].Username != "alice" || msgs[3].Dialog != "100" {
		t.Errorf("oldest = %+v", msgs[3])
	}

	newer, err := b.ListMessages(ctx, dialogs[1], chat.ListOptions{After: 1000, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(newer) != 1 || newer[0].ID != "3" {
		t.Errorf("after 1000 limit 1 = %+v, want message 3 only", newer)
	}

	pinned, err := b.ListMessages(ctx, dialogs[0], chat.ListOptions{PinnedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(pinned) != 1 || !pinned[0].Pinned {
		t.Errorf("pinned = %+v", pinned)
	}
}

func TestBackendRefreshPropagatesTransient(t *testing.T) {
	ing := &fakeIngestor{ingest: func(context.Context, *Recorder) error {
		return chat.Transient(errors.New("502 Bad Gateway"))
	}}
	b := New(testDB(t), ing, "", t.TempDir(), nil)

	err := b.Refresh(context.Background())
	if !chat.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestResolveSender(t *testing.T) {
	b := New(testDB(t), nil, chat.SourceTelegram, t.TempDir(), nil)
	ctx := context.Background()

	id, err := b.ResolveSender(ctx, chat.RawMessage{Forwarded: true, FwdChatTitle: "News"})
	if err != nil || id.ChatTitle != "News" {
		t.Errorf("ResolveSender = (%+v, %v)", id, err)
	}
	if _, err := b.ResolveSender(ctx, chat.RawMessage{Forwarded: true}); !errors.Is(err, chat.ErrUnknownSender) {
		t.Errorf("err = %v, want ErrUnknownSender", err)
	}
	id, err = b.ResolveSender(ctx, chat.RawMessage{FromSelf: true})
	if err != nil || !id.FromSelf {
		t.Errorf("ResolveSender(self) = (%+v, %v)", id, err)
	}
}

func TestDownloadMedia(t *testing.T) {
	db := testDB(t)
	mediaDir := filepath.Join(t.TempDir(), "media")
	ing := &fakeIngestor{}
	b := New(db, ing, "", mediaDir, nil)
	ctx := context.Background()

	if err := db.UpsertMessage(ctx, &store.Message{Source: "telegram", ChatID: "100", MsgID: "5", Timestamp: 1, MediaKind: "photo", MediaFileID: "F"}); err != nil {
		t.Fatal(err)
	}
	msg := chat.RawMessage{ID: "5", Dialog: "100"}

	path, err := b.DownloadMedia(ctx, msg, "100_5.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(mediaDir, "100_5.jpg") {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "bytes of F" {
		t.Errorf("content = %q, %v", data, err)
	}

	// Existing files are not downloaded again.
	if _, err := b.DownloadMedia(ctx, msg, "100_5.jpg"); err != nil {
		t.Fatal(err)
	}
	if ing.downloads != 1 {
		t.Errorf("downloads = %d, want 1", ing.downloads)
	}

	if _, err := b.DownloadMedia(ctx, msg, "../escape.jpg"); err == nil {
		t.Error("path traversal accepted")
	}
	if _, err := b.DownloadMedia(ctx, chat.RawMessage{ID: "404", Dialog: "100"}, "x.jpg"); err == nil {
		t.Error("unknown message downloaded")
	}
}

func TestDownloadMediaFailureLeavesNoFile(t *testing.T) {
	db := testDB(t)
	mediaDir := t.TempDir()
	b := New(db, &fakeIngestor{failDL: true}, "", mediaDir, nil)
	ctx := context.Background()

	if err := db.UpsertMessage(ctx, &store.Message{Source: "telegram", ChatID: "1", MsgID: "1", Timestamp: 1, MediaKind: "document"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.DownloadMedia(ctx, chat.RawMessage{ID: "1", Dialog: "1"}, "doc.pdf"); err == nil {
		t.Fatal("download error swallowed")
	}
	entries, _ := os.ReadDir(mediaDir)
	if len(entries) != 0 {
		t.Errorf("media dir holds %d files after a failed download", len(entries))
	}
}
