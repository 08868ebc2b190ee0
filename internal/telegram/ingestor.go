// Package telegram fills the archive from the Telegram Bot API. The bot is
// the todo dialog: messages forwarded to it become the raw material of tasks.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/matheus3301/fwdtodo/internal/archive"
	"github.com/matheus3301/fwdtodo/internal/chat"
	"github.com/matheus3301/fwdtodo/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultAPIURL     = "https://api.telegram.org"
	DefaultPollWindow = 10 * time.Second

	longPollTimeout = 5 * time.Second
	maxDownloadSize = 50 << 20
)

// Options configures an Ingestor.
type Options struct {
	Token      string
	APIURL     string
	PollWindow time.Duration
}

// Ingestor long-polls the Bot API for a bounded window per pass. The offset
// of the next unconfirmed update lives in memory; after a restart the Bot API
// redelivers whatever was never confirmed.
type Ingestor struct {
	opts   Options
	logger *zap.Logger
	client *http.Client

	mu     sync.Mutex
	offset int64

	botMu sync.Mutex
	bot   *bot.Bot
}

// New creates an ingestor.
func New(opts Options, logger *zap.Logger) (*Ingestor, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	if opts.PollWindow <= 0 {
		opts.PollWindow = DefaultPollWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		opts:   opts,
		logger: logger,
		client: &http.Client{Timeout: opts.PollWindow + 10*time.Second},
	}, nil
}

func (in *Ingestor) Source() chat.Source { return chat.SourceTelegram }

// Ingest records every message delivered during the poll window. An update
// is confirmed to the Bot API only after it was recorded, so a failed or
// interrupted pass leaves the rest for the next one.
func (in *Ingestor) Ingest(ctx context.Context, rec *archive.Recorder) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	deadline := time.Now().Add(in.opts.PollWindow)
	in.logger.Debug("polling", zap.Duration("window", in.opts.PollWindow), zap.Int64("offset", in.offset))
	for {
		timeout := max(min(longPollTimeout, time.Until(deadline)), 0)
		updates, err := in.getUpdates(ctx, in.offset, int(timeout.Seconds()))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			in.logger.Warn("polling failed", zap.Error(err))
			return Classify(fmt.Errorf("get updates: %w", err))
		}
		for _, update := range updates {
			if err := in.record(ctx, rec, update); err != nil {
				in.logger.Error("record update failed", zap.Int64("update_id", update.ID), zap.Error(err))
				return err
			}
			in.offset = update.ID + 1
		}
		if time.Until(deadline) < time.Second {
			return nil
		}
	}
}

func (in *Ingestor) record(ctx context.Context, rec *archive.Recorder, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil {
		return nil
	}
	if err := rec.Chat(ctx, ChatID(msg.Chat), ChatName(msg.Chat), msg.Chat.Type == models.ChatTypePrivate); err != nil {
		return err
	}

	if msg.PinnedMessage != nil {
		pinned := msg.PinnedMessage.Message
		if pinned == nil {
			return nil
		}
		row, ok := ConvertPinned(pinned)
		if !ok {
			return nil
		}
		return rec.Message(ctx, &row)
	}

	row, ok := ConvertMessage(msg)
	if !ok {
		in.logger.Debug("skipping service message", zap.Int("msg_id", msg.ID))
		return nil
	}
	return rec.Message(ctx, &row)
}

// Download fetches the file of an archived photo or document into dest.
func (in *Ingestor) Download(ctx context.Context, msg store.Message, dest string) error {
	if msg.MediaFileID == "" {
		return fmt.Errorf("message %s has no file", msg.MsgID)
	}
	b, err := in.fileBot()
	if err != nil {
		return err
	}
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: msg.MediaFileID})
	if err != nil {
		return Classify(fmt.Errorf("get file: %w", err))
	}
	if file.FilePath == "" {
		return fmt.Errorf("empty file path for file %s", msg.MediaFileID)
	}

	link := fmt.Sprintf("%s/file/bot%s/%s", in.opts.APIURL, in.opts.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return Classify(fmt.Errorf("download file: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Classify(fmt.Errorf("download file: unexpected status %s", resp.Status))
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxDownloadSize)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// fileBot returns a client for file lookups, created on first use.
func (in *Ingestor) fileBot() (*bot.Bot, error) {
	in.botMu.Lock()
	defer in.botMu.Unlock()
	if in.bot != nil {
		return in.bot, nil
	}
	b, err := bot.New(in.opts.Token,
		bot.WithServerURL(in.opts.APIURL),
		bot.WithHTTPClient(longPollTimeout, in.client),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot client: %w", err)
	}
	in.bot = b
	return b, nil
}
