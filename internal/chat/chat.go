// Package chat defines the messages fwdtodo reads from a chat backend and the
// backend contract itself.
package chat

import (
	"context"
	"errors"
)

// Source names a chat backend.
type Source string

const (
	SourceTelegram Source = "telegram"
	SourceWhatsApp Source = "whatsapp"
)

// ErrTransient marks a backend failure that is expected to go away on its own
// ("service temporarily unavailable"). A pass that hits it finishes with zero
// new records instead of failing.
var ErrTransient = errors.New("chat backend temporarily unavailable")

// ErrUnknownSender is returned by ResolveSender when a message carries no
// usable identity.
var ErrUnknownSender = errors.New("unknown sender")

// IsTransient reports whether err is (or wraps) ErrTransient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.err} }

// Dialog is a conversation known to the backend.
type Dialog struct {
	ID     string
	Name   string
	IsUser bool
}

// RawMessage is one inbound message as the backend delivered it.
type RawMessage struct {
	ID        string
	Dialog    string
	Timestamp int64
	Text      string
	Media     Media
	Pinned    bool

	// Identity as reported by the backend, resolved through ResolveSender.
	Forwarded    bool
	FromSelf     bool
	FwdChatTitle string
	Username     string
	FirstName    string
	LastName     string
}

// ListOptions narrows ListMessages.
type ListOptions struct {
	// After drops messages at or before this timestamp.
	After int64
	// Limit keeps only the oldest matching messages; 0 means no cap. A capped
	// result never ends inside a run of equal timestamps.
	Limit      int
	PinnedOnly bool
}

// SenderIdentity is what a backend knows about the author of a message. For a
// forwarded message the fields describe the forward origin.
type SenderIdentity struct {
	Forwarded bool
	FromSelf  bool
	ChatTitle string
	Username  string
	FirstName string
	LastName  string
}

// Backend is the chat collaborator consumed by the sync engine.
type Backend interface {
	ListDialogs(ctx context.Context) ([]Dialog, error)
	// ListMessages returns non-service messages of a dialog, newest first.
	ListMessages(ctx context.Context, dialog Dialog, opts ListOptions) ([]RawMessage, error)
	ResolveSender(ctx context.Context, msg RawMessage) (SenderIdentity, error)
	// DownloadMedia stores the media of msg under name and returns the local
	// path. If the file already exists it is returned without downloading.
	DownloadMedia(ctx context.Context, msg RawMessage, name string) (string, error)
}

// Refresher is implemented by backends that need to pull new data before
// they can be listed.
type Refresher interface {
	Refresh(ctx context.Context) error
}
