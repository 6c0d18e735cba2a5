// Package chat implements the realtime session and room-membership
// coordinator: presence tracking, room membership, and event routing between
// connected sessions. The package is transport-agnostic; delivery happens
// through the Sender interface wired in by the server layer.
package chat

import (
	"encoding/json"
	"time"
)

// EventType identifies a wire event. The names are a fixed contract with the
// browser client and must not change.
type EventType string

// Inbound events.
const (
	EventRegisterUser       EventType = "register_user"
	EventJoinRoom           EventType = "join_room"
	EventLeaveRoom          EventType = "leave_room"
	EventSendGroupMessage   EventType = "send_group_message"
	EventSendPrivateMessage EventType = "send_private_message"
	EventTyping             EventType = "typing"
	EventLogoutUser         EventType = "logout_user"
)

// Outbound events.
const (
	EventOnlineUsers           EventType = "online_users"
	EventTypingIndicator       EventType = "typing_indicator"
	EventReceiveGroupMessage   EventType = "receive_group_message"
	EventReceivePrivateMessage EventType = "receive_private_message"
	EventMessageFailed         EventType = "message_failed"
)

// Envelope is the frame exchanged over the WebSocket in both directions.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MarshalEnvelope builds a wire frame for an outbound event.
func MarshalEnvelope(event EventType, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// RegisterUserPayload binds a username to the sending session.
type RegisterUserPayload struct {
	Username string `json:"username"`
}

// JoinRoomPayload moves the sending session into a catalog room.
type JoinRoomPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// SendGroupMessagePayload carries a message addressed to a room.
type SendGroupMessagePayload struct {
	Room     string `json:"room"`
	FromUser string `json:"from_user"`
	Message  string `json:"message"`
}

// SendPrivateMessagePayload carries a one-to-one message.
type SendPrivateMessagePayload struct {
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Message  string `json:"message"`
}

// TypingPayload signals that a user started or stopped composing.
type TypingPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// LogoutUserPayload removes the username's presence entry.
type LogoutUserPayload struct {
	Username string `json:"username"`
}

// TypingIndicatorPayload is the outbound counterpart of TypingPayload.
type TypingIndicatorPayload struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// MessageFailedPayload notifies the sender that the store rejected a message,
// so nothing was delivered.
type MessageFailedPayload struct {
	Reason string `json:"reason"`
}

// StoredMessage is the persisted form of a group or private message, echoed
// verbatim to recipients after the store acknowledges the write. Room is set
// for group messages, ToUser for private ones.
type StoredMessage struct {
	ID       string    `json:"id"`
	Room     string    `json:"room,omitempty"`
	FromUser string    `json:"from_user"`
	ToUser   string    `json:"to_user,omitempty"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}

// MessageStore is the collaborator contract for durable message records. The
// router never delivers a message whose save returned an error.
type MessageStore interface {
	SaveGroupMessage(room, fromUser, text string) (StoredMessage, error)
	SavePrivateMessage(fromUser, toUser, text string) (StoredMessage, error)
}

// Sender delivers outbound events to sessions. Implementations must tolerate
// unknown session ids (the session may have disconnected between recipient
// computation and delivery).
type Sender interface {
	Send(sessionID string, event EventType, data any)
	Broadcast(event EventType, data any)
}
