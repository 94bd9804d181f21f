package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/chat-relay/chat"
)

// ExportFilter narrows which messages ListFiltered returns. Zero values mean
// no constraint on that dimension.
type ExportFilter struct {
	From     time.Time
	To       time.Time
	Username string
}

// ListFiltered returns all messages matching the filter in ascending id
// order. It backs the chat-export command and deliberately has no limit;
// exports are expected to stream the full range.
func ListFiltered(ctx context.Context, dbx *sql.DB, f ExportFilter) ([]chat.Message, error) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if f.Username != "" {
		args = append(args, f.Username)
		conds = append(conds, fmt.Sprintf("username = $%d", len(args)))
	}

	query := `SELECT id, username, message, created_at FROM chat_messages`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := dbx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list filtered chat messages: %w", err)
	}
	return scanMessages(rows)
}
