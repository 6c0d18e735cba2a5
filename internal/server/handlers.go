package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/chat"
)

// Handler serves the WebSocket upgrade endpoint and the health check.
type Handler struct {
	hub      *Hub
	router   *chat.Router
	cfg      Config
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler wires the transport handler. Origin checking follows the
// configured allow-list.
func NewHandler(hub *Hub, router *chat.Router, cfg Config, log *slog.Logger) *Handler {
	policy := newOriginPolicy(cfg.AllowedOrigins, log)
	return &Handler{
		hub:    hub,
		router: router,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		log: log,
	}
}

// WebSocket upgrades the request, creates a brand-new session, and registers
// the client with the hub, which starts its pumps.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	sessionID := uuid.NewString()
	h.router.HandleConnect(sessionID)

	client := NewClient(conn, h.hub, h.router, sessionID, r.RemoteAddr, h.cfg, h.log)
	h.hub.Register(client)
}

// Health responds with a plain text liveness message.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Chat server is running!")
}
