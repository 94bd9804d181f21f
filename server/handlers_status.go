package server

import (
	"database/sql"
	"errors"
	"net/http"
)

// HandleStatus reports operational state for the dashboard: log size, the
// newest message id, connected websocket clients, and job bookkeeping.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	out := map[string]any{
		"ws_clients":     h.hub.ClientCount(),
		"poll_wait":      h.cfg.PollWait.String(),
		"snapshot_limit": h.cfg.SnapshotLimit,
	}

	var count int64
	var maxID sql.NullInt64
	if err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(id) FROM chat_messages`).Scan(&count, &maxID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read message stats")
		return
	}
	out["messages"] = count
	out["latest_id"] = maxID.Int64

	var lastRetention string
	err := h.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key='job_retention_last'`).Scan(&lastRetention)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, "failed to read job state")
		return
	}
	out["last_retention_run"] = lastRetention

	writeJSON(w, http.StatusOK, out)
}
