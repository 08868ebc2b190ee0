package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const upsertMessageQuery = `
	INSERT INTO messages (
		source, chat_id, msg_id, timestamp, text, from_self, forwarded,
		fwd_chat_title, fwd_username, fwd_first_name, fwd_last_name,
		media_kind, media_url, media_title, media_display_url, media_description,
		media_file_id, media_file_name, media_mime_type, media_type_name,
		pinned, raw, created_at)
	VALUES (
		:source, :chat_id, :msg_id, :timestamp, :text, :from_self, :forwarded,
		:fwd_chat_title, :fwd_username, :fwd_first_name, :fwd_last_name,
		:media_kind, :media_url, :media_title, :media_display_url, :media_description,
		:media_file_id, :media_file_name, :media_mime_type, :media_type_name,
		:pinned, :raw, :created_at)
	ON CONFLICT(source, chat_id, msg_id) DO UPDATE SET
		text = excluded.text,
		fwd_chat_title = excluded.fwd_chat_title,
		fwd_username = excluded.fwd_username,
		fwd_first_name = excluded.fwd_first_name,
		fwd_last_name = excluded.fwd_last_name,
		media_kind = excluded.media_kind,
		media_url = excluded.media_url,
		media_title = excluded.media_title,
		media_display_url = excluded.media_display_url,
		media_description = excluded.media_description,
		media_file_id = excluded.media_file_id,
		media_file_name = excluded.media_file_name,
		media_mime_type = excluded.media_mime_type,
		media_type_name = excluded.media_type_name,
		pinned = MAX(messages.pinned, excluded.pinned),
		raw = COALESCE(excluded.raw, messages.raw)`

const ensureChatQuery = `
	INSERT INTO chats (source, chat_id, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(source, chat_id) DO NOTHING`

// UpsertMessage inserts or updates a message (idempotent on source + chat_id + msg_id).
// A message once seen pinned stays pinned until MarkPinned clears it, and a
// stored raw payload is kept when the update carries none.
func (db *DB) UpsertMessage(ctx context.Context, m *Message) error {
	return db.UpsertMessages(ctx, []*Message{m})
}

// UpsertMessages stores a batch in one transaction, creating placeholder
// chat rows for chats not seen before.
func (db *DB) UpsertMessages(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	return db.InTx(ctx, func(tx *sqlx.Tx) error {
		for _, m := range msgs {
			if _, err := tx.ExecContext(ctx, ensureChatQuery, m.Source, m.ChatID, now); err != nil {
				return fmt.Errorf("ensure chat %s: %w", m.ChatID, err)
			}
			m.CreatedAt = now
			if _, err := tx.NamedExecContext(ctx, upsertMessageQuery, m); err != nil {
				return fmt.Errorf("upsert message %s: %w", m.MsgID, err)
			}
		}
		return nil
	})
}

// MarkPinned sets the pinned flag of an archived message. It reports whether
// the message was found.
func (db *DB) MarkPinned(ctx context.Context, source, chatID, msgID string, pinned bool) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE messages SET pinned = ?
		WHERE source = ? AND chat_id = ? AND msg_id = ?`,
		pinned, source, chatID, msgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const listMessagesQuery = `
	SELECT * FROM messages
	WHERE source = ? AND chat_id = ? AND timestamp > ? AND (? = 0 OR pinned = 1)`

// ListMessages returns the messages matching q, oldest first.
func (db *DB) ListMessages(ctx context.Context, q MessageQuery) ([]Message, error) {
	args := []any{q.Source, q.ChatID, q.After, q.PinnedOnly}
	var msgs []Message
	if q.Limit <= 0 {
		err := db.SelectContext(ctx, &msgs, listMessagesQuery+` ORDER BY timestamp, id`, args...)
		return msgs, err
	}
	if err := db.SelectContext(ctx, &msgs, listMessagesQuery+` ORDER BY timestamp, id LIMIT ?`,
		append(args, q.Limit)...); err != nil {
		return nil, err
	}
	if len(msgs) < q.Limit {
		return msgs, nil
	}

	// Complete the run of the last timestamp.
	last := msgs[len(msgs)-1]
	var rest []Message
	if err := db.SelectContext(ctx, &rest, listMessagesQuery+` AND timestamp = ? AND id > ? ORDER BY id`,
		append(args, last.Timestamp, last.ID)...); err != nil {
		return nil, err
	}
	return append(msgs, rest...), nil
}

// GetMessage returns one archived message, or nil when it is unknown.
func (db *DB) GetMessage(ctx context.Context, source, chatID, msgID string) (*Message, error) {
	var msgs []Message
	err := db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE source = ? AND chat_id = ? AND msg_id = ?`, source, chatID, msgID)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// MessageCount returns how many messages of source are archived.
func (db *DB) MessageCount(ctx context.Context, source string) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE source = ?`, source)
	return n, err
}
