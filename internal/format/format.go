// Package format turns a forwarding event into a task record: a bounded
// single-line heading, a tag set and the full body.
package format

import (
	"context"
	"net/url"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/group"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultHeadingLimit  = 400
	DefaultUnknownSender = "ERROR UNKNOWN SENDER"
	DefaultSenderURL     = "https://t.me"

	selfLabel    = "me"
	pinnedPrefix = "pinned: "
)

// Record is the formatted form of one event. Timestamp doubles as the
// deduplication key.
type Record struct {
	Timestamp int64
	Heading   string
	// Tags is a set; it is kept sorted and free of duplicates.
	Tags []string
	Body []string
}

// Backend is the part of the chat backend the formatter needs.
type Backend interface {
	ResolveSender(ctx context.Context, msg chat.RawMessage) (chat.SenderIdentity, error)
	DownloadMedia(ctx context.Context, msg chat.RawMessage, name string) (string, error)
}

// Options configures a Formatter. Zero values fall back to the defaults.
type Options struct {
	HeadingLimit  int
	UnknownSender string
	SenderURL     string
	LinkStyle     LinkStyle
	// UnknownMedia is appended for unrecognized attachments; empty omits the line.
	UnknownMedia  string
	DownloadMedia bool
	// Tags maps sender labels to tags.
	Tags map[string]string
}

// Formatter renders groups into records.
type Formatter struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
}

// New creates a formatter. backend may be nil when no sender resolution or
// media download is wanted; every sender then resolves from the raw message.
func New(backend Backend, opts Options, logger *zap.Logger) *Formatter {
	if opts.HeadingLimit <= 0 {
		opts.HeadingLimit = DefaultHeadingLimit
	}
	if opts.UnknownSender == "" {
		opts.UnknownSender = DefaultUnknownSender
	}
	if opts.SenderURL == "" {
		opts.SenderURL = DefaultSenderURL
	}
	opts.SenderURL = strings.TrimRight(opts.SenderURL, "/")
	if opts.LinkStyle == "" {
		opts.LinkStyle = LinkPlain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{backend: backend, opts: opts, logger: logger}
}

// Format renders g. It never fails: unresolvable senders and unknown media
// degrade to placeholders and are logged.
func (f *Formatter) Format(ctx context.Context, g group.Group) Record {
	labels := make([]string, 0, len(g.Messages))
	for _, m := range g.Messages {
		labels = append(labels, f.senderLabel(ctx, m))
	}
	labels = uniqueSorted(labels)

	tags := make([]string, 0, len(labels))
	for _, l := range labels {
		if tag, ok := f.opts.Tags[l]; ok && tag != "" {
			tags = append(tags, tag)
		}
	}

	var body []string
	for _, m := range g.Messages {
		if m.Text != "" {
			body = append(body, m.Text)
		}
		if line, ok := f.mediaLine(ctx, m); ok {
			body = append(body, line)
		}
	}
	// The backend lists a burst newest first.
	slices.Reverse(body)

	identity := f.identity(labels)
	if g.Pinned() {
		identity = pinnedPrefix + identity
	}

	return Record{
		Timestamp: g.Timestamp,
		Heading:   Heading(identity, body, f.opts.HeadingLimit),
		Tags:      uniqueSorted(tags),
		Body:      body,
	}
}

func (f *Formatter) senderLabel(ctx context.Context, m chat.RawMessage) string {
	id := chat.SenderIdentity{
		Forwarded: m.Forwarded,
		FromSelf:  m.FromSelf,
		ChatTitle: m.FwdChatTitle,
		Username:  m.Username,
		FirstName: m.FirstName,
		LastName:  m.LastName,
	}
	if f.backend != nil {
		resolved, err := f.backend.ResolveSender(ctx, m)
		if err != nil {
			f.logger.Warn("cannot resolve sender",
				zap.String("msg_id", m.ID), zap.Int64("timestamp", m.Timestamp), zap.Error(err))
			return f.opts.UnknownSender
		}
		id = resolved
	}
	label, ok := Label(id)
	if !ok {
		f.logger.Warn("message has no usable sender",
			zap.String("msg_id", m.ID), zap.Int64("timestamp", m.Timestamp))
		return f.opts.UnknownSender
	}
	return norm.NFC.String(label)
}

func (f *Formatter) identity(labels []string) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		target := l
		if f.opts.LinkStyle == LinkMarkdown {
			// A markdown link target ends at the first space.
			target = url.PathEscape(l)
		}
		parts = append(parts, f.opts.LinkStyle.Link(f.opts.SenderURL+"/"+target, l))
	}
	return strings.Join(parts, ", ")
}

// Label picks the visible label for a sender: forward origin chat title, then
// username, then display name. Messages that were not forwarded are "me"
// unless the backend reports a different author. ok is false when a
// forwarded message carries no usable field.
func Label(id chat.SenderIdentity) (label string, ok bool) {
	if id.Forwarded {
		switch {
		case id.ChatTitle != "":
			return id.ChatTitle, true
		case id.Username != "":
			return id.Username, true
		case id.FirstName != "" || id.LastName != "":
			return displayName(id.FirstName, id.LastName), true
		}
		return "", false
	}
	if id.FromSelf {
		return selfLabel, true
	}
	switch {
	case id.Username != "":
		return id.Username, true
	case id.FirstName != "" || id.LastName != "":
		return displayName(id.FirstName, id.LastName), true
	}
	return selfLabel, true
}

func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// Heading appends whole lines of body to prefix while the result stays within
// limit characters, then collapses whitespace runs to single spaces. A prefix
// longer than limit is cut to limit.
func Heading(prefix string, body []string, limit int) string {
	heading := truncate(prefix, limit)
	n := utf8.RuneCountInString(heading)
	for _, line := range splitLines(body) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln := utf8.RuneCountInString(line)
		if n+1+ln > limit {
			break
		}
		heading += " " + line
		n += 1 + ln
	}
	return strings.Join(strings.Fields(heading), " ")
}

func splitLines(body []string) []string {
	joined := strings.Join(body, "\n")
	joined = strings.ReplaceAll(joined, "\r\n", "\n")
	return strings.FieldsFunc(joined, func(r rune) bool { return r == '\n' || r == '\r' })
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	sort.Strings(out)
	return slices.Compact(out)
}
