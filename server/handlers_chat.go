package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/chat-relay/db"
	"github.com/onnwee/chat-relay/hub"
	"github.com/onnwee/chat-relay/telemetry"
)

// HandleMessages serves the message log: GET returns the newest messages in
// ascending id order, POST appends one.
func (h *Handlers) HandleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleSnapshot(w, r)
	case http.MethodPost:
		h.handleSend(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handlers) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	limit := h.clampLimit(parseIntQuery(r, "limit", h.cfg.SnapshotLimit))
	telemetry.SnapshotRequests.Inc()

	msgs, err := db.ListRecent(r.Context(), h.db, limit)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("snapshot query failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handlers) handleSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		telemetry.SendsRejected.Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := strings.TrimSpace(body.Text)
	if text == "" {
		telemetry.SendsRejected.Inc()
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(text) > h.cfg.SendMaxLen {
		telemetry.SendsRejected.Inc()
		writeError(w, http.StatusBadRequest, "text too long")
		return
	}

	username := strings.TrimSpace(r.Header.Get("X-Chat-User"))
	if username == "" {
		username = "anonymous"
	}

	msg, err := db.InsertMessage(r.Context(), h.db, username, text)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("message insert failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	telemetry.MessagesSent.Inc()

	if err := h.hub.Broadcast(hub.EventMessage, msg); err != nil {
		// Listeners miss the push but the poll path still sees the row.
		telemetry.LoggerWithCorr(r.Context()).Warn("broadcast failed", slog.Any("err", err))
	} else {
		telemetry.Broadcasts.Inc()
	}
	if h.pub != nil {
		if err := h.pub.Publish(r.Context(), msg); err != nil {
			telemetry.LoggerWithCorr(r.Context()).Warn("peer publish failed", slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusCreated, msg)
}

// HandlePoll is the bounded-wait poll endpoint. It answers immediately when
// messages newer than since_id exist, otherwise it holds the request until a
// broadcast wakes it or the configured wait elapses, answering [] on timeout.
func (h *Handlers) HandlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sinceID := parseInt64Query(r, "since_id", 0)
	if sinceID < 0 {
		sinceID = 0
	}
	limit := h.clampLimit(parseIntQuery(r, "limit", h.cfg.SnapshotLimit))

	telemetry.PollRequests.Inc()
	start := time.Now()
	defer func() {
		if telemetry.PollWaitDuration != nil {
			telemetry.PollWaitDuration.Observe(time.Since(start).Seconds())
		}
	}()

	ctx := r.Context()
	deadline := time.NewTimer(h.cfg.PollWait)
	defer deadline.Stop()

	for {
		// Arm the wake channel before querying so a broadcast landing between
		// the query and the select is never missed.
		wake := h.hub.Wake()

		msgs, err := db.ListAfter(ctx, h.db, sinceID, limit)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Error("poll query failed", slog.Any("err", err))
			writeError(w, http.StatusInternalServerError, "failed to load messages")
			return
		}
		if len(msgs) > 0 {
			writeJSON(w, http.StatusOK, msgs)
			return
		}

		select {
		case <-wake:
			// New broadcast; re-query.
		case <-deadline.C:
			telemetry.PollTimeouts.Inc()
			writeJSON(w, http.StatusOK, msgs)
			return
		case <-ctx.Done():
			// Client went away; nothing to write.
			return
		}
	}
}

// clampLimit bounds a client-requested page size to [1, SnapshotMax].
func (h *Handlers) clampLimit(n int) int {
	if n < 1 {
		return h.cfg.SnapshotLimit
	}
	if n > h.cfg.SnapshotMax {
		return h.cfg.SnapshotMax
	}
	return n
}
