package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/chat"
	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/store"
)

// HistoryHandler serves read-only message history from the collaborator
// store. History never participates in realtime routing: joining a room does
// not replay past messages, clients fetch them here.
type HistoryHandler struct {
	messages *store.MessageStore
	catalog  *chat.Catalog
	log      *slog.Logger
}

// NewHistoryHandler builds the history handler.
func NewHistoryHandler(messages *store.MessageStore, catalog *chat.Catalog, log *slog.Logger) *HistoryHandler {
	return &HistoryHandler{messages: messages, catalog: catalog, log: log}
}

// Rooms returns the fixed room catalog.
func (h *HistoryHandler) Rooms(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"rooms": h.catalog.Rooms()})
}

// Group returns the stored messages for ?room=..., oldest first.
func (h *HistoryHandler) Group(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if !h.catalog.Contains(room) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown room"})
		return
	}
	messages, err := h.messages.GroupHistory(room)
	if err != nil {
		h.log.Error("group history read failed", "room", room, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": emptyIfNil(messages)})
}

// Private returns the conversation between ?user=... and ?with=...,
// oldest first.
func (h *HistoryHandler) Private(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	other := r.URL.Query().Get("with")
	if user == "" || other == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "user and with are required"})
		return
	}
	messages, err := h.messages.PrivateHistory(user, other)
	if err != nil {
		h.log.Error("private history read failed", "user", user, "with", other, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": emptyIfNil(messages)})
}

func emptyIfNil(messages []chat.StoredMessage) []chat.StoredMessage {
	if messages == nil {
		return []chat.StoredMessage{}
	}
	return messages
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
