package wa

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/fwdtodo/internal/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// ErrLoggedOut is reported when the phone unlinks the device.
var ErrLoggedOut = errors.New("whatsapp device logged out")

// Recorder is where the handler writes messages. *archive.Recorder
// implements it.
type Recorder interface {
	Chat(ctx context.Context, chatID, name string, isUser bool) error
	Batch(ctx context.Context, msgs []*store.Message) error
}

// ChatNamer resolves the display name of a chat.
type ChatNamer interface {
	ChatName(ctx context.Context, jid types.JID) string
}

// EventHandler processes whatsmeow events during one poll window and writes
// messages into the archive.
type EventHandler struct {
	ctx    context.Context
	rec    Recorder
	names  ChatNamer
	logger *zap.Logger

	mu        sync.Mutex
	known     map[string]bool
	err       error
	connected chan struct{}
	once      sync.Once
}

// NewEventHandler creates a handler. whatsmeow calls handlers without a
// context, so ctx is used for every write.
func NewEventHandler(ctx context.Context, rec Recorder, names ChatNamer, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{
		ctx:       ctx,
		rec:       rec,
		names:     names,
		logger:    logger,
		known:     make(map[string]bool),
		connected: make(chan struct{}),
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.once.Do(func() { close(h.connected) })
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		h.fail(ErrLoggedOut)
	}
}

// Connected is closed once the client is connected.
func (h *EventHandler) Connected() <-chan struct{} { return h.connected }

// Err returns the first failure seen by the handler.
func (h *EventHandler) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *EventHandler) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	parsed := ParseLiveMessage(evt)
	if parsed.IsEmpty() {
		return
	}
	if err := h.ensureChat(evt.Info.Chat, ""); err != nil {
		h.fail(err)
		return
	}
	if err := h.rec.Batch(h.ctx, []*store.Message{parsed.ToStoreMessage()}); err != nil {
		h.logger.Error("record message failed", zap.String("msg_id", parsed.MsgID), zap.Error(err))
		h.fail(err)
	}
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var msgs []*store.Message
	for _, conv := range data.GetConversations() {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil {
			h.logger.Debug("skipping conversation", zap.String("id", conv.GetID()), zap.Error(err))
			continue
		}
		if err := h.ensureChat(chatJID, conv.GetName()); err != nil {
			h.fail(err)
			return
		}
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			parsed := ParseHistoryMessage(wmsg.GetMessage(), types.MessageInfo{
				MessageSource: types.MessageSource{
					Chat:     chatJID,
					IsFromMe: wmsg.GetKey().GetFromMe(),
				},
				ID:       wmsg.GetKey().GetID(),
				PushName: wmsg.GetPushName(),
			})
			parsed.Timestamp = int64(wmsg.GetMessageTimestamp())
			if parsed.IsEmpty() {
				continue
			}
			msgs = append(msgs, parsed.ToStoreMessage())
		}
	}

	if len(msgs) == 0 {
		return
	}
	if err := h.rec.Batch(h.ctx, msgs); err != nil {
		h.logger.Error("record history batch failed", zap.Int("count", len(msgs)), zap.Error(err))
		h.fail(err)
		return
	}
	h.logger.Info("history batch recorded", zap.Int("count", len(msgs)))
}

// ensureChat records a chat the first time it is seen in this window.
func (h *EventHandler) ensureChat(jid types.JID, name string) error {
	jid = jid.ToNonAD()
	id := jid.String()

	h.mu.Lock()
	seen := h.known[id]
	h.known[id] = true
	h.mu.Unlock()
	if seen {
		return nil
	}

	if name == "" && h.names != nil {
		name = h.names.ChatName(h.ctx, jid)
	}
	if name == "" {
		name = jid.User
	}
	return h.rec.Chat(h.ctx, id, name, IsUserChat(jid))
}
