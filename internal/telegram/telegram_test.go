package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/format"
)

func todoChat() models.Chat {
	return models.Chat{ID: 42, Type: models.ChatTypePrivate, Username: "owner", FirstName: "Owner"}
}

func TestConvertMessageForwardOrigins(t *testing.T) {
	tests := []struct {
		name   string
		origin *models.MessageOrigin
		title  string
		user   string
		first  string
		last   string
	}{
		{
			name: "user",
			origin: &models.MessageOrigin{
				Type: models.MessageOriginTypeUser,
				MessageOriginUser: &models.MessageOriginUser{
					SenderUser: models.User{ID: 7, Username: "alice", FirstName: "Alice", LastName: "Liddell"},
				},
			},
			user: "alice", first: "Alice", last: "Liddell",
		},
		{
			name: "hidden user",
			origin: &models.MessageOrigin{
				Type:                    models.MessageOriginTypeHiddenUser,
				MessageOriginHiddenUser: &models.MessageOriginHiddenUser{SenderUserName: "Bob B"},
			},
			first: "Bob B",
		},
		{
			name: "chat",
			origin: &models.MessageOrigin{
				Type:              models.MessageOriginTypeChat,
				MessageOriginChat: &models.MessageOriginChat{SenderChat: models.Chat{ID: -1, Title: "Book Club"}},
			},
			title: "Book Club",
		},
		{
			name: "channel",
			origin: &models.MessageOrigin{
				Type:                 models.MessageOriginTypeChannel,
				MessageOriginChannel: &models.MessageOriginChannel{Chat: models.Chat{ID: -2, Title: "News"}},
			},
			title: "News",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := ConvertMessage(&models.Message{
				ID:            10,
				Date:          1000,
				Chat:          todoChat(),
				Text:          "hello",
				ForwardOrigin: tt.origin,
			})
			if !ok {
				t.Fatal("message skipped")
			}
			if !row.Forwarded || row.FromSelf {
				t.Fatalf("forwarded=%v from_self=%v", row.Forwarded, row.FromSelf)
			}
			if row.FwdChatTitle != tt.title || row.FwdUsername != tt.user ||
				row.FwdFirstName != tt.first || row.FwdLastName != tt.last {
				t.Fatalf("identity = %q %q %q %q", row.FwdChatTitle, row.FwdUsername, row.FwdFirstName, row.FwdLastName)
			}
			if row.ChatID != "42" || row.MsgID != "10" || row.Timestamp != 1000 {
				t.Fatalf("keys = %s/%s@%d", row.ChatID, row.MsgID, row.Timestamp)
			}
		})
	}
}

func TestConvertMessageAuthor(t *testing.T) {
	supergroup := models.Chat{ID: -100, Type: models.ChatTypeSupergroup, Title: "todo"}
	tests := []struct {
		name string
		msg  *models.Message
	}{
		{"private", &models.Message{ID: 1, Date: 5, Chat: todoChat(), Text: "note to self"}},
		{"supergroup", &models.Message{
			ID: 2, Date: 5, Chat: supergroup, Text: "hi",
			From: &models.User{ID: 9, Username: "owner"},
		}},
		{"group", &models.Message{
			ID: 3, Date: 5, Chat: models.Chat{ID: -5, Type: models.ChatTypeGroup, Title: "todo"}, Text: "hi",
			From: &models.User{ID: 9, Username: "owner", FirstName: "Owner"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := ConvertMessage(tt.msg)
			if !ok || !row.FromSelf || row.Forwarded {
				t.Fatalf("ok=%v %+v", ok, row)
			}
			if row.FwdUsername != "" || row.FwdFirstName != "" {
				t.Errorf("author fields set: %+v", row)
			}
			label, ok := format.Label(chat.SenderIdentity{FromSelf: row.FromSelf, Username: row.FwdUsername})
			if !ok || label != "me" {
				t.Errorf("label = %q, want me", label)
			}
		})
	}
}

func TestConvertPinned(t *testing.T) {
	user := models.Chat{ID: 7, Type: models.ChatTypePrivate, Username: "carol"}
	row, ok := ConvertPinned(&models.Message{
		ID: 4, Date: 9, Chat: user, Text: "call back",
		From: &models.User{ID: 7, Username: "carol", FirstName: "Carol"},
	})
	if !ok || !row.Pinned || row.FromSelf || row.FwdUsername != "carol" || row.FwdFirstName != "Carol" {
		t.Fatalf("pinned by author: ok=%v %+v", ok, row)
	}

	row, ok = ConvertPinned(&models.Message{
		ID: 5, Date: 9, Chat: user, Text: "fwd",
		From: &models.User{ID: 7, Username: "carol"},
		ForwardOrigin: &models.MessageOrigin{
			Type:              models.MessageOriginTypeUser,
			MessageOriginUser: &models.MessageOriginUser{SenderUser: models.User{ID: 8, Username: "dave"}},
		},
	})
	if !ok || !row.Pinned || !row.Forwarded || row.FwdUsername != "dave" {
		t.Fatalf("pinned forward: ok=%v %+v", ok, row)
	}

	if _, ok := ConvertPinned(&models.Message{ID: 6, Date: 9, Chat: user}); ok {
		t.Error("empty pinned message converted")
	}
}

func TestConvertMessageMedia(t *testing.T) {
	tests := []struct {
		name  string
		msg   models.Message
		kind  chat.MediaKind
		text  string
		check func(t *testing.T, fileID, fileName, mime, url, display, title, typeName string)
	}{
		{
			name: "photo uses largest size and caption",
			msg: models.Message{
				Caption: "look",
				Photo:   []models.PhotoSize{{FileID: "small"}, {FileID: "large"}},
			},
			kind: chat.MediaPhoto,
			text: "look",
			check: func(t *testing.T, fileID, _, mime, _, _, _, _ string) {
				if fileID != "large" || mime != "image/jpeg" {
					t.Fatalf("file=%q mime=%q", fileID, mime)
				}
			},
		},
		{
			name: "document",
			msg: models.Message{
				Document: &models.Document{FileID: "doc", FileName: "a.pdf", MimeType: "application/pdf"},
			},
			kind: chat.MediaDocument,
			check: func(t *testing.T, fileID, fileName, mime, _, _, _, _ string) {
				if fileID != "doc" || fileName != "a.pdf" || mime != "application/pdf" {
					t.Fatalf("file=%q name=%q mime=%q", fileID, fileName, mime)
				}
			},
		},
		{
			name: "venue",
			msg:  models.Message{Venue: &models.Venue{Title: "Cafe"}},
			kind: chat.MediaVenue,
			check: func(t *testing.T, _, _, _, _, _, title, _ string) {
				if title != "Cafe" {
					t.Fatalf("title = %q", title)
				}
			},
		},
		{
			name: "url entity after non-BMP text",
			msg: models.Message{
				Text: "😀 see https://example.com/post/1 now",
				Entities: []models.MessageEntity{
					{Type: models.MessageEntityTypeURL, Offset: 7, Length: 26},
				},
			},
			kind: chat.MediaWebPage,
			text: "😀 see https://example.com/post/1 now",
			check: func(t *testing.T, _, _, _, url, display, _, _ string) {
				if url != "https://example.com/post/1" || display != "example.com/post/1" {
					t.Fatalf("url=%q display=%q", url, display)
				}
			},
		},
		{
			name: "text link",
			msg: models.Message{
				Text:     "read this",
				Entities: []models.MessageEntity{{Type: models.MessageEntityTypeTextLink, Offset: 0, Length: 4, URL: "https://x.org/"}},
			},
			kind: chat.MediaWebPage,
			text: "read this",
			check: func(t *testing.T, _, _, _, url, display, _, _ string) {
				if url != "https://x.org/" || display != "x.org" {
					t.Fatalf("url=%q display=%q", url, display)
				}
			},
		},
		{
			name: "sticker is unknown",
			msg:  models.Message{Sticker: &models.Sticker{FileID: "s"}},
			kind: chat.MediaUnknown,
			check: func(t *testing.T, _, _, _, _, _, _, typeName string) {
				if typeName != "sticker" {
					t.Fatalf("type = %q", typeName)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			msg.ID, msg.Date, msg.Chat = 3, 100, todoChat()
			row, ok := ConvertMessage(&msg)
			if !ok {
				t.Fatal("message skipped")
			}
			if row.MediaKind != string(tt.kind) {
				t.Fatalf("kind = %q, want %q", row.MediaKind, tt.kind)
			}
			if row.Text != tt.text {
				t.Fatalf("text = %q, want %q", row.Text, tt.text)
			}
			tt.check(t, row.MediaFileID, row.MediaFileName, row.MediaMimeType,
				row.MediaURL, row.MediaDisplayURL, row.MediaTitle, row.MediaTypeName)
		})
	}
}

func TestConvertMessageSkipsServiceMessages(t *testing.T) {
	if _, ok := ConvertMessage(&models.Message{ID: 1, Date: 1, Chat: todoChat()}); ok {
		t.Fatal("empty message converted")
	}
	if _, ok := ConvertMessage(nil); ok {
		t.Fatal("nil message converted")
	}
}

func TestChatName(t *testing.T) {
	tests := []struct {
		chat models.Chat
		want string
	}{
		{models.Chat{Title: "Group", Username: "g"}, "Group"},
		{models.Chat{Username: "alice", FirstName: "Alice"}, "alice"},
		{models.Chat{FirstName: "Alice", LastName: "L"}, "Alice L"},
		{models.Chat{FirstName: "Alice"}, "Alice"},
	}
	for _, tt := range tests {
		if got := ChatName(tt.chat); got != tt.want {
			t.Errorf("ChatName(%+v) = %q, want %q", tt.chat, got, tt.want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "dial tcp: timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"too many requests", errors.New("too many requests, retry after 3"), true},
		{"internal issues", errors.New("RPC_CALL_FAIL: Telegram is having internal issues"), true},
		{"bad gateway", errors.New("error response 502: Bad Gateway"), true},
		{"deadline", fmt.Errorf("get updates: %w", context.DeadlineExceeded), true},
		{"net timeout", fmt.Errorf("post: %w", timeoutErr{}), true},
		{"unauthorized", errors.New("unauthorized"), false},
		{"bad request", errors.New("bad request: chat not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)
			if got := chat.IsTransient(err); got != tt.transient {
				t.Fatalf("IsTransient(%v) = %v, want %v", err, got, tt.transient)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Fatalf("classified error lost its cause: %v", err)
			}
		})
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Fatal("expected error for empty token")
	}
	in, err := New(Options{Token: "123:abc", APIURL: "http://localhost/"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if in.opts.APIURL != "http://localhost" || in.opts.PollWindow != DefaultPollWindow {
		t.Fatalf("defaults not applied: %+v", in.opts)
	}
	if in.Source() != chat.SourceTelegram {
		t.Fatalf("source = %q", in.Source())
	}
}
