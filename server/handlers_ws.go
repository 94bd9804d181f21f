package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/onnwee/chat-relay/hub"
	"github.com/onnwee/chat-relay/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS policy is enforced by the outer middleware; the browser clients
	// this serves connect cross-origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and attaches it to the hub. Every message
// broadcast after the upgrade is delivered as a {"event","data"} envelope;
// inbound frames are drained only for keepalive, sends go through the POST
// endpoint like every other client.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	username := strings.TrimSpace(r.Header.Get("X-Chat-User"))
	if username == "" {
		username = r.URL.Query().Get("user")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		slog.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}

	client := hub.NewClient(h.hub, conn, username)
	h.hub.Register(client)
	telemetry.SetWSConnections(h.hub.ClientCount())

	go client.WritePump()
	client.ReadPump(nil)

	// ReadPump returns once the connection is gone and unregistered.
	telemetry.SetWSConnections(h.hub.ClientCount())
}
