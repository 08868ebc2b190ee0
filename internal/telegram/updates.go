package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

var allowedUpdates = bot.AllowedUpdates{
	models.AllowedUpdateMessage,
	models.AllowedUpdateEditedMessage,
	models.AllowedUpdateChannelPost,
}

type getUpdatesParams struct {
	Offset         int64              `json:"offset,omitempty"`
	Timeout        int                `json:"timeout"`
	AllowedUpdates bot.AllowedUpdates `json:"allowed_updates,omitempty"`
}

type updatesResponse struct {
	OK          bool             `json:"ok"`
	Result      []*models.Update `json:"result"`
	ErrorCode   int              `json:"error_code"`
	Description string           `json:"description"`
}

// getUpdates asks for the updates from offset on, waiting up to timeout
// seconds. Passing an offset confirms every update below it.
func (in *Ingestor) getUpdates(ctx context.Context, offset int64, timeout int) ([]*models.Update, error) {
	body, err := json.Marshal(getUpdatesParams{Offset: offset, Timeout: timeout, AllowedUpdates: allowedUpdates})
	if err != nil {
		return nil, err
	}
	link := fmt.Sprintf("%s/bot%s/getUpdates", in.opts.APIURL, in.opts.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var r updatesResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode response (status %s): %w", resp.Status, err)
	}
	if !r.OK {
		return nil, apiError(r.ErrorCode, r.Description)
	}
	return r.Result, nil
}

// apiError maps a Bot API error response onto the bot package errors.
func apiError(code int, description string) error {
	switch code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w, %s", bot.ErrorUnauthorized, description)
	case http.StatusForbidden:
		return fmt.Errorf("%w, %s", bot.ErrorForbidden, description)
	case http.StatusBadRequest:
		return fmt.Errorf("%w, %s", bot.ErrorBadRequest, description)
	case http.StatusNotFound:
		return fmt.Errorf("%w, %s", bot.ErrorNotFound, description)
	case http.StatusConflict:
		return fmt.Errorf("%w, %s", bot.ErrorConflict, description)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w, %s", bot.ErrorTooManyRequests, description)
	}
	return fmt.Errorf("error response %d: %s", code, description)
}
