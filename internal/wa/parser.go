package wa

import (
	"net/url"
	"strings"

	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/store"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// ParsedMessage is a normalized message ready for the archive.
type ParsedMessage struct {
	ChatJID   string
	MsgID     string
	PushName  string
	Text      string
	FromMe    bool
	Forwarded bool
	// Timestamp is in unix seconds.
	Timestamp int64
	Media     chat.Media
	Raw       []byte
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	return parse(evt.Message, evt.Info)
}

// ParseHistoryMessage normalizes a history sync message.
func ParseHistoryMessage(msg *waE2E.Message, info types.MessageInfo) *ParsedMessage {
	return parse(msg, info)
}

func parse(msg *waE2E.Message, info types.MessageInfo) *ParsedMessage {
	p := &ParsedMessage{
		ChatJID:   info.Chat.ToNonAD().String(),
		MsgID:     info.ID,
		PushName:  info.PushName,
		Text:      extractTextBody(msg),
		FromMe:    info.IsFromMe,
		Forwarded: contextInfo(msg).GetIsForwarded(),
		Timestamp: info.Timestamp.Unix(),
		Media:     extractMedia(msg),
	}
	if p.Media.Kind == chat.MediaPhoto || p.Media.Kind == chat.MediaDocument {
		if raw, err := proto.Marshal(msg); err == nil {
			p.Raw = raw
		}
	}
	return p
}

// IsEmpty reports whether the message has nothing to turn into a task line:
// protocol messages, reactions, receipts.
func (p *ParsedMessage) IsEmpty() bool {
	return p.Text == "" && !p.Media.HasMedia()
}

// ToStoreMessage converts a ParsedMessage to an archive row. WhatsApp keeps
// no forward origin, so the sender push name is the only identity recorded.
func (p *ParsedMessage) ToStoreMessage() *store.Message {
	m := &store.Message{
		ChatID:           p.ChatJID,
		MsgID:            p.MsgID,
		Timestamp:        p.Timestamp,
		Text:             p.Text,
		FromSelf:         p.FromMe && !p.Forwarded,
		Forwarded:        p.Forwarded,
		MediaKind:        string(p.Media.Kind),
		MediaURL:         p.Media.URL,
		MediaTitle:       p.Media.Title,
		MediaDisplayURL:  p.Media.DisplayURL,
		MediaDescription: p.Media.Description,
		MediaFileName:    p.Media.FileName,
		MediaMimeType:    p.Media.MimeType,
		MediaTypeName:    p.Media.TypeName,
		Raw:              p.Raw,
	}
	if !p.FromMe {
		m.FwdFirstName = p.PushName
	}
	return m
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	case msg.GetPollCreationMessage() != nil:
		return "poll"
	default:
		return "unknown"
	}
}

// extractMedia maps the attachment of msg onto the media union. Message kinds
// with no attachment, such as reactions and protocol messages, map to none.
func extractMedia(msg *waE2E.Message) chat.Media {
	switch detectMessageType(msg) {
	case "text":
		ext := msg.GetExtendedTextMessage()
		link := ext.GetMatchedText()
		if link == "" {
			return chat.Media{}
		}
		return chat.Media{
			Kind:        chat.MediaWebPage,
			URL:         link,
			Title:       ext.GetTitle(),
			DisplayURL:  displayURL(link),
			Description: ext.GetDescription(),
		}
	case "image":
		return chat.Media{Kind: chat.MediaPhoto, MimeType: msg.GetImageMessage().GetMimetype()}
	case "document":
		doc := msg.GetDocumentMessage()
		return chat.Media{Kind: chat.MediaDocument, FileName: doc.GetFileName(), MimeType: doc.GetMimetype()}
	case "location":
		loc := msg.GetLocationMessage()
		if loc.GetName() == "" {
			return chat.Media{Kind: chat.MediaUnknown, TypeName: "location"}
		}
		return chat.Media{Kind: chat.MediaVenue, Title: loc.GetName()}
	case "unknown":
		return chat.Media{}
	default:
		return chat.Media{Kind: chat.MediaUnknown, TypeName: detectMessageType(msg)}
	}
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetContextInfo()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage().GetContextInfo()
	case msg.GetContactMessage() != nil:
		return msg.GetContactMessage().GetContextInfo()
	case msg.GetLocationMessage() != nil:
		return msg.GetLocationMessage().GetContextInfo()
	}
	return nil
}

func displayURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	return strings.TrimSuffix(u.Host+u.Path, "/")
}
