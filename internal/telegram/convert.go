package telegram

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/store"
)

// ChatName is the display name of a chat: its title for groups and channels,
// the username or full name for private chats.
func ChatName(c models.Chat) string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return c.Username
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ChatID formats a chat id the way the archive keys it.
func ChatID(c models.Chat) string {
	return strconv.FormatInt(c.ID, 10)
}

// ConvertMessage maps a Bot API message to an archive row. ok is false for
// service messages, which carry neither text nor media. A message that was not
// forwarded was written in the todo dialog itself and counts as the owner's.
func ConvertMessage(m *models.Message) (row store.Message, ok bool) {
	if m == nil {
		return store.Message{}, false
	}
	row = store.Message{
		ChatID:    ChatID(m.Chat),
		MsgID:     strconv.Itoa(m.ID),
		Timestamp: int64(m.Date),
		Text:      m.Text,
	}
	entities := m.Entities
	if row.Text == "" {
		row.Text = m.Caption
		entities = m.CaptionEntities
	}

	if origin := m.ForwardOrigin; origin != nil {
		row.Forwarded = true
		applyOrigin(&row, origin)
	} else {
		row.FromSelf = true
	}

	applyMedia(&row, m, entities)
	if row.Text == "" && row.MediaKind == string(chat.MediaNone) {
		return store.Message{}, false
	}
	return row, true
}

// ConvertPinned maps a message pinned in a user dialog. Unless it was
// forwarded, its author is the one who wrote it there.
func ConvertPinned(m *models.Message) (row store.Message, ok bool) {
	row, ok = ConvertMessage(m)
	if !ok {
		return row, false
	}
	row.Pinned = true
	if !row.Forwarded && m.From != nil {
		row.FromSelf = false
		row.FwdUsername = m.From.Username
		row.FwdFirstName = m.From.FirstName
		row.FwdLastName = m.From.LastName
	}
	return row, true
}

func applyOrigin(row *store.Message, origin *models.MessageOrigin) {
	switch origin.Type {
	case models.MessageOriginTypeUser:
		if o := origin.MessageOriginUser; o != nil {
			row.FwdUsername = o.SenderUser.Username
			row.FwdFirstName = o.SenderUser.FirstName
			row.FwdLastName = o.SenderUser.LastName
		}
	case models.MessageOriginTypeHiddenUser:
		if o := origin.MessageOriginHiddenUser; o != nil {
			row.FwdFirstName = o.SenderUserName
		}
	case models.MessageOriginTypeChat:
		if o := origin.MessageOriginChat; o != nil {
			row.FwdChatTitle = ChatName(o.SenderChat)
		}
	case models.MessageOriginTypeChannel:
		if o := origin.MessageOriginChannel; o != nil {
			row.FwdChatTitle = ChatName(o.Chat)
		}
	}
}

func applyMedia(row *store.Message, m *models.Message, entities []models.MessageEntity) {
	switch {
	case len(m.Photo) > 0:
		// Sizes are listed smallest first.
		row.MediaKind = string(chat.MediaPhoto)
		row.MediaFileID = m.Photo[len(m.Photo)-1].FileID
		row.MediaMimeType = "image/jpeg"
	case m.Document != nil:
		row.MediaKind = string(chat.MediaDocument)
		row.MediaFileID = m.Document.FileID
		row.MediaFileName = m.Document.FileName
		row.MediaMimeType = m.Document.MimeType
	case m.Venue != nil:
		row.MediaKind = string(chat.MediaVenue)
		row.MediaTitle = m.Venue.Title
	case otherMedia(m) != "":
		row.MediaKind = string(chat.MediaUnknown)
		row.MediaTypeName = otherMedia(m)
	default:
		link, ok := firstLink(row.Text, entities)
		if !ok {
			return
		}
		row.MediaKind = string(chat.MediaWebPage)
		row.MediaURL = link
		row.MediaDisplayURL = displayURL(link)
	}
}

func otherMedia(m *models.Message) string {
	switch {
	case m.Sticker != nil:
		return "sticker"
	case m.Video != nil:
		return "video"
	case m.VideoNote != nil:
		return "video_note"
	case m.Voice != nil:
		return "voice"
	case m.Audio != nil:
		return "audio"
	case m.Animation != nil:
		return "animation"
	case m.Contact != nil:
		return "contact"
	case m.Poll != nil:
		return "poll"
	case m.Location != nil:
		return "location"
	}
	return ""
}

// firstLink returns the target of the first url or text_link entity. Entity
// offsets count UTF-16 code units.
func firstLink(text string, entities []models.MessageEntity) (string, bool) {
	var units []uint16
	for _, e := range entities {
		switch e.Type {
		case models.MessageEntityTypeTextLink:
			if e.URL != "" {
				return e.URL, true
			}
		case models.MessageEntityTypeURL:
			if units == nil {
				units = utf16.Encode([]rune(text))
			}
			if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
				continue
			}
			return string(utf16.Decode(units[e.Offset : e.Offset+e.Length])), true
		}
	}
	return "", false
}

func displayURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	return strings.TrimSuffix(u.Host+u.Path, "/")
}
