// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/onnwee/chat-relay/chat"
	"github.com/onnwee/chat-relay/config"
	"github.com/onnwee/chat-relay/hub"
	"github.com/onnwee/chat-relay/telemetry"
)

// Publisher fans a locally accepted message out to peer instances. Nil when
// the deployment is a single node.
type Publisher interface {
	Publish(ctx context.Context, m chat.Message) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db  *sql.DB
	ctx context.Context
	cfg *config.Config
	hub *hub.Hub
	pub Publisher
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, db *sql.DB, cfg *config.Config, h *hub.Hub, pub Publisher) *Handlers {
	telemetry.Init()
	return &Handlers{
		db:  db,
		ctx: ctx,
		cfg: cfg,
		hub: h,
		pub: pub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the error body shape all clients parse: {"error": "..."}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
