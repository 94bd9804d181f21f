package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/chat-relay/chat"
)

// InsertMessage stores one chat message and returns the persisted row with
// its server-assigned id and timestamp. Ids are allocated by the sequence,
// so clients can rely on them being strictly increasing.
func InsertMessage(ctx context.Context, dbx *sql.DB, username, text string) (chat.Message, error) {
	var m chat.Message
	m.Username = username
	m.Text = text
	err := dbx.QueryRowContext(ctx,
		`INSERT INTO chat_messages(username, message) VALUES($1, $2) RETURNING id, created_at`,
		username, text).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert chat message: %w", err)
	}
	return m, nil
}

// ListRecent returns the newest limit messages in ascending id order, the
// shape the snapshot endpoint serves.
func ListRecent(ctx context.Context, dbx *sql.DB, limit int) ([]chat.Message, error) {
	rows, err := dbx.QueryContext(ctx,
		`SELECT id, username, message, created_at FROM (
			SELECT id, username, message, created_at
			FROM chat_messages ORDER BY id DESC LIMIT $1
		 ) recent ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent chat messages: %w", err)
	}
	return scanMessages(rows)
}

// ListAfter returns up to limit messages with id greater than sinceID, in
// ascending id order. The long-poll endpoint calls it after every wake.
func ListAfter(ctx context.Context, dbx *sql.DB, sinceID int64, limit int) ([]chat.Message, error) {
	rows, err := dbx.QueryContext(ctx,
		`SELECT id, username, message, created_at
		 FROM chat_messages WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages after %d: %w", sinceID, err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]chat.Message, error) {
	defer rows.Close()
	out := make([]chat.Message, 0, 16)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.Username, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
