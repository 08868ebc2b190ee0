package telegram

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/matheus3301/fwdtodo/internal/chat"
)

// Bot API and network failures that clear up by themselves.
var transientMarkers = []string{
	"too many requests",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"internal issues",
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
}

// Classify wraps err with chat.ErrTransient when the failure is expected to
// go away on a later pass. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || chat.IsTransient(err) {
		return err
	}
	if isTransient(err) {
		return chat.Transient(err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
