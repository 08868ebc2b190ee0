package format

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matheus3301/fwdtodo/internal/chat"
	"go.uber.org/zap"
)

const (
	markerEmptyWebPage   = "*empty web page*"
	markerPendingWebPage = "*pending web page*"
	markerPhoto          = "*PHOTO*"
	markerDocument       = "*DOCUMENT*"
	markerVenue          = "*VENUE*"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// mediaLine renders the single body line for m's attachment. ok is false
// when m has no attachment or the attachment is not rendered.
func (f *Formatter) mediaLine(ctx context.Context, m chat.RawMessage) (string, bool) {
	media := m.Media
	switch media.Kind {
	case chat.MediaNone:
		return "", false
	case chat.MediaWebPage:
		title := media.Title
		if title == "" {
			title = media.DisplayURL
		}
		line := f.opts.LinkStyle.Link(media.URL, title)
		if media.Description != "" {
			line += " " + media.Description
		}
		return line, true
	case chat.MediaWebPageEmpty:
		return markerEmptyWebPage, true
	case chat.MediaWebPagePending:
		return markerPendingWebPage, true
	case chat.MediaPhoto:
		name := localName(m, m.ID+".jpg")
		if ref, ok := f.download(ctx, m, name, name); ok {
			return markerPhoto + " " + ref, true
		}
		return markerPhoto, true
	case chat.MediaDocument:
		name := DocumentName(m)
		if ref, ok := f.download(ctx, m, localName(m, name), name); ok {
			return markerDocument + " " + ref, true
		}
		return markerDocument + " " + name, true
	case chat.MediaVenue:
		return markerVenue + " " + media.Title, true
	}

	f.logger.Warn("unknown media",
		zap.String("msg_id", m.ID),
		zap.String("kind", string(media.Kind)),
		zap.String("type", media.TypeName))
	if f.opts.UnknownMedia == "" {
		return "", false
	}
	return f.opts.UnknownMedia, true
}

func (f *Formatter) download(ctx context.Context, m chat.RawMessage, dest, label string) (string, bool) {
	if !f.opts.DownloadMedia || f.backend == nil {
		return "", false
	}
	path, err := f.backend.DownloadMedia(ctx, m, dest)
	if err != nil {
		f.logger.Warn("media download failed", zap.String("msg_id", m.ID), zap.Error(err))
		return "", false
	}
	if path == "" {
		return "", false
	}
	return f.opts.LinkStyle.Link("file:"+path, label), true
}

// DocumentName is the visible name of a document: its own file name, or
// "<id>.<mime subtype>" when the backend reports none.
func DocumentName(m chat.RawMessage) string {
	if name := strings.TrimSpace(m.Media.FileName); name != "" {
		return filepath.Base(name)
	}
	return m.ID + "." + mimeSubtype(m.Media.MimeType)
}

func mimeSubtype(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(mime), "/")
	if !ok || sub == "" {
		return "bin"
	}
	return sub
}

// localName prefixes name with the dialog so files from different chats with
// the same message id do not collide.
func localName(m chat.RawMessage, name string) string {
	prefix := unsafeName.ReplaceAllString(m.Dialog, "_")
	if prefix == "" {
		return unsafeName.ReplaceAllString(name, "_")
	}
	return prefix + "_" + unsafeName.ReplaceAllString(name, "_")
}
