package store

import (
	"context"
	"time"
)

// UpsertChat inserts or updates a chat record.
func (db *DB) UpsertChat(ctx context.Context, c *Chat) error {
	c.UpdatedAt = time.Now().UnixMilli()
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO chats (source, chat_id, name, is_user, updated_at)
		VALUES (:source, :chat_id, :name, :is_user, :updated_at)
		ON CONFLICT(source, chat_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			is_user = excluded.is_user,
			updated_at = excluded.updated_at`, c)
	return err
}

// ListChats returns the archived chats of source ordered by name.
func (db *DB) ListChats(ctx context.Context, source string) ([]Chat, error) {
	var chats []Chat
	err := db.SelectContext(ctx, &chats, `
		SELECT source, chat_id, name, is_user, updated_at
		FROM chats
		WHERE source = ?
		ORDER BY name, chat_id`, source)
	return chats, err
}
