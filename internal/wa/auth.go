package wa

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
)

// AuthEventType enumerates auth event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents an auth lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth begins the QR auth flow. The caller should read the returned
// channel until it closes.
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := a.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			return
		}

		for item := range qrChan {
			if evt, done := authEvent(item); evt != nil {
				out <- *evt
				if done {
					return
				}
			}
		}
	}()

	return out, nil
}

func authEvent(item whatsmeow.QRChannelItem) (evt *AuthEvent, done bool) {
	switch item.Event {
	case "code":
		return &AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}, false
	case "success":
		return &AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}, true
	case "timeout":
		return &AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}, true
	}
	if item.Error != nil {
		return &AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}, true
	}
	return nil, false
}

// Pair links the device store to a phone, printing each pairing code to w as
// a terminal QR code.
func (a *Adapter) Pair(ctx context.Context, w io.Writer) error {
	events, err := a.StartQRAuth(ctx)
	if err != nil {
		return err
	}
	for evt := range events {
		switch evt.Type {
		case AuthEventQRCode:
			_, _ = fmt.Fprintf(w, "\n  Scan this QR code with WhatsApp (Linked devices):\n\n%s\n", RenderQR(evt.QRCode))
		case AuthEventAuthenticated:
			_, _ = fmt.Fprintln(w, "  Paired.")
			return nil
		case AuthEventTimeout:
			return fmt.Errorf("pairing: %s", evt.Message)
		case AuthEventAuthFailed:
			return fmt.Errorf("pairing failed: %s", evt.Message)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("pairing ended without result")
}

// RenderQR converts a string to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top && !bot:
				sb.WriteRune('▀')
			case !top && bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
