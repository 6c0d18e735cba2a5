package chat

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Router validates inbound events, mutates the presence registry and room
// tracker, computes the recipient set for each event class, and dispatches
// through the Sender. Invalid events (unknown room, empty message, missing
// registration) are dropped without emitting anything; all failures are
// per-event and never fatal.
//
// Events for a single session arrive sequentially from its read loop, so each
// event is handled to completion before the next one for that session.
// Different sessions' events interleave; the shared registries carry their own
// locks.
type Router struct {
	sessions *SessionTable
	presence *Presence
	rooms    *Rooms
	catalog  *Catalog
	store    MessageStore
	sender   Sender
	log      *slog.Logger
}

// NewRouter wires the core state container. The Sender is the transport-side
// fan-out (the hub in production, a recorder in tests).
func NewRouter(catalog *Catalog, store MessageStore, sender Sender, log *slog.Logger) *Router {
	return &Router{
		sessions: NewSessionTable(),
		presence: NewPresence(),
		rooms:    NewRooms(),
		catalog:  catalog,
		store:    store,
		sender:   sender,
		log:      log,
	}
}

// Presence exposes the registry for read-side observers.
func (r *Router) Presence() *Presence { return r.presence }

// Rooms exposes the membership tracker for read-side observers.
func (r *Router) Rooms() *Rooms { return r.rooms }

// Sessions exposes the session table for read-side observers.
func (r *Router) Sessions() *SessionTable { return r.sessions }

// HandleConnect creates the session record for a new transport connection.
func (r *Router) HandleConnect(sessionID string) {
	r.sessions.Connect(sessionID)
	r.log.Debug("session connected", "session", sessionID)
}

// Dispatch decodes one inbound frame and routes it. Malformed frames and
// events that fail their preconditions are dropped.
func (r *Router) Dispatch(sessionID string, raw []byte) {
	sess, ok := r.sessions.Get(sessionID)
	if !ok {
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.log.Debug("dropping malformed frame", "session", sessionID, "error", err)
		return
	}

	switch env.Event {
	case EventRegisterUser:
		var p RegisterUserPayload
		if decode(r.log, env, &p) {
			r.registerUser(sess, p)
		}
	case EventJoinRoom:
		var p JoinRoomPayload
		if decode(r.log, env, &p) {
			r.joinRoom(sess, p)
		}
	case EventLeaveRoom:
		r.leaveRoom(sess)
	case EventSendGroupMessage:
		var p SendGroupMessagePayload
		if decode(r.log, env, &p) {
			r.sendGroupMessage(sess, p)
		}
	case EventSendPrivateMessage:
		var p SendPrivateMessagePayload
		if decode(r.log, env, &p) {
			r.sendPrivateMessage(sess, p)
		}
	case EventTyping:
		var p TypingPayload
		if decode(r.log, env, &p) {
			r.typing(sess, p)
		}
	case EventLogoutUser:
		var p LogoutUserPayload
		if decode(r.log, env, &p) {
			r.logoutUser(sess, p)
		}
	default:
		r.log.Debug("dropping unknown event", "session", sessionID, "event", env.Event)
	}
}

// HandleDisconnect runs the terminal transition for a session: room cleanup
// with its typing-stopped notification, presence removal with its online_users
// broadcast, then release of the record. Safe to call for sessions in any
// state.
func (r *Router) HandleDisconnect(sessionID string) {
	sess, ok := r.sessions.Release(sessionID)
	if !ok {
		return
	}

	if room, left := r.rooms.Leave(sessionID); left && sess.Registered() {
		r.sendToRoom(room, sessionID, EventTypingIndicator, TypingIndicatorPayload{
			Username: sess.Username,
			IsTyping: false,
		})
	}

	if sess.Registered() && r.presence.Unregister(sess.Username, sessionID) {
		r.broadcastPresence()
	}
	r.log.Debug("session disconnected", "session", sessionID, "username", sess.Username)
}

func (r *Router) registerUser(sess *Session, p RegisterUserPayload) {
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return
	}
	sess.Username = username
	r.presence.Register(username, sess.ID)
	r.broadcastPresence()
}

func (r *Router) joinRoom(sess *Session, p JoinRoomPayload) {
	if !sess.Registered() {
		r.log.Debug("join_room before register_user", "session", sess.ID)
		return
	}
	if !r.catalog.Contains(p.Room) {
		r.log.Debug("join_room for unknown room", "session", sess.ID, "room", p.Room)
		return
	}
	// One room per session: leave the old one before joining.
	r.rooms.Leave(sess.ID)
	r.rooms.Join(sess.ID, p.Room)
	sess.CurrentRoom = p.Room
}

func (r *Router) leaveRoom(sess *Session) {
	room, ok := r.rooms.Leave(sess.ID)
	if !ok {
		return
	}
	sess.CurrentRoom = ""
	r.sendToRoom(room, sess.ID, EventTypingIndicator, TypingIndicatorPayload{
		Username: sess.Username,
		IsTyping: false,
	})
}

func (r *Router) sendGroupMessage(sess *Session, p SendGroupMessagePayload) {
	if !sess.InRoom() || !r.catalog.Contains(p.Room) {
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		return
	}

	stored, err := r.store.SaveGroupMessage(p.Room, p.FromUser, p.Message)
	if err != nil {
		r.log.Error("group message save failed", "room", p.Room, "error", err)
		r.sender.Send(sess.ID, EventMessageFailed, MessageFailedPayload{Reason: "message could not be saved"})
		return
	}

	// Delivery only after the store has acknowledged the write, and only to
	// sessions that are members right now.
	for _, memberID := range r.rooms.MembersOf(p.Room) {
		r.sender.Send(memberID, EventReceiveGroupMessage, stored)
	}
}

func (r *Router) sendPrivateMessage(sess *Session, p SendPrivateMessagePayload) {
	if !sess.Registered() {
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		return
	}

	stored, err := r.store.SavePrivateMessage(p.FromUser, p.ToUser, p.Message)
	if err != nil {
		r.log.Error("private message save failed", "to", p.ToUser, "error", err)
		r.sender.Send(sess.ID, EventMessageFailed, MessageFailedPayload{Reason: "message could not be saved"})
		return
	}

	// The sender always sees its own echo. The recipient gets a copy only if
	// currently registered; offline recipients are dropped, not queued.
	r.sender.Send(sess.ID, EventReceivePrivateMessage, stored)
	if recipientID, online := r.presence.LookupSession(p.ToUser); online && recipientID != sess.ID {
		r.sender.Send(recipientID, EventReceivePrivateMessage, stored)
	}
}

func (r *Router) typing(sess *Session, p TypingPayload) {
	room, ok := r.rooms.RoomOf(sess.ID)
	if !ok {
		return
	}
	r.sendToRoom(room, sess.ID, EventTypingIndicator, TypingIndicatorPayload{
		Username: p.Username,
		IsTyping: p.IsTyping,
	})
}

func (r *Router) logoutUser(sess *Session, p LogoutUserPayload) {
	if !r.presence.Unregister(p.Username, sess.ID) {
		return
	}
	if sess.Username == p.Username {
		sess.Username = ""
	}
	r.broadcastPresence()
}

func (r *Router) broadcastPresence() {
	r.sender.Broadcast(EventOnlineUsers, r.presence.Snapshot())
}

// sendToRoom delivers an event to every member of room except exclude.
func (r *Router) sendToRoom(room, exclude string, event EventType, data any) {
	for _, memberID := range r.rooms.MembersOf(room) {
		if memberID == exclude {
			continue
		}
		r.sender.Send(memberID, event, data)
	}
}

func decode[T any](log *slog.Logger, env Envelope, dst *T) bool {
	if err := json.Unmarshal(env.Data, dst); err != nil {
		log.Debug("dropping event with malformed payload", "event", env.Event, "error", err)
		return false
	}
	return true
}
