package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder captures everything the router asks the transport to deliver.
type recorder struct {
	sends      []recordedEvent
	broadcasts []recordedEvent
}

type recordedEvent struct {
	sessionID string
	event     EventType
	data      any
}

func (r *recorder) Send(sessionID string, event EventType, data any) {
	r.sends = append(r.sends, recordedEvent{sessionID: sessionID, event: event, data: data})
}

func (r *recorder) Broadcast(event EventType, data any) {
	r.broadcasts = append(r.broadcasts, recordedEvent{event: event, data: data})
}

func (r *recorder) sendsTo(sessionID string) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.sends {
		if e.sessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

// memStore is an in-memory MessageStore; failing flips every save into an error.
type memStore struct {
	failing bool
	seq     int
	saved   []StoredMessage
}

func (m *memStore) SaveGroupMessage(room, fromUser, text string) (StoredMessage, error) {
	if m.failing {
		return StoredMessage{}, errors.New("store unavailable")
	}
	m.seq++
	msg := StoredMessage{
		ID:       fmt.Sprintf("msg-%d", m.seq),
		Room:     room,
		FromUser: fromUser,
		Message:  text,
		SentAt:   time.Now().UTC(),
	}
	m.saved = append(m.saved, msg)
	return msg, nil
}

func (m *memStore) SavePrivateMessage(fromUser, toUser, text string) (StoredMessage, error) {
	if m.failing {
		return StoredMessage{}, errors.New("store unavailable")
	}
	m.seq++
	msg := StoredMessage{
		ID:       fmt.Sprintf("msg-%d", m.seq),
		FromUser: fromUser,
		ToUser:   toUser,
		Message:  text,
		SentAt:   time.Now().UTC(),
	}
	m.saved = append(m.saved, msg)
	return msg, nil
}

func newTestRouter(store MessageStore) (*Router, *recorder) {
	sender := &recorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewCatalog(DefaultRooms), store, sender, log), sender
}

func dispatch(t *testing.T, r *Router, sessionID string, event EventType, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	require.NoError(t, err)
	r.Dispatch(sessionID, frame)
}

func register(t *testing.T, r *Router, sessionID, username string) {
	t.Helper()
	dispatch(t, r, sessionID, EventRegisterUser, RegisterUserPayload{Username: username})
}

func joinRoom(t *testing.T, r *Router, sessionID, room, username string) {
	t.Helper()
	dispatch(t, r, sessionID, EventJoinRoom, JoinRoomPayload{Room: room, Username: username})
}

func TestRegisterBroadcastsOnlineUsers(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")

	register(t, router, "s1", "alice")

	require.Len(t, sender.broadcasts, 1)
	require.Equal(t, EventOnlineUsers, sender.broadcasts[0].event)
	require.Equal(t, []string{"alice"}, sender.broadcasts[0].data)
}

func TestLastRegisterWins(t *testing.T) {
	router, _ := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	router.HandleConnect("s2")

	register(t, router, "s1", "bob")
	register(t, router, "s2", "bob")

	sessionID, ok := router.Presence().LookupSession("bob")
	require.True(t, ok)
	require.Equal(t, "s2", sessionID)
}

func TestStaleDisconnectKeepsNewerRegistration(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	register(t, router, "s1", "bob")
	register(t, router, "s2", "bob")
	broadcastsBefore := len(sender.broadcasts)

	// The stale session disconnects after the newer registration.
	router.HandleDisconnect("s1")

	sessionID, ok := router.Presence().LookupSession("bob")
	require.True(t, ok)
	require.Equal(t, "s2", sessionID)
	require.Len(t, sender.broadcasts, broadcastsBefore, "guarded no-op must not broadcast presence")
}

func TestJoinRequiresRegistration(t *testing.T) {
	router, _ := newTestRouter(&memStore{})
	router.HandleConnect("s1")

	joinRoom(t, router, "s1", "devops", "alice")

	_, inRoom := router.Rooms().RoomOf("s1")
	require.False(t, inRoom)
}

func TestJoinUnknownRoomDropped(t *testing.T) {
	router, _ := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	register(t, router, "s1", "alice")

	joinRoom(t, router, "s1", "no-such-room", "alice")

	_, inRoom := router.Rooms().RoomOf("s1")
	require.False(t, inRoom)
}

func TestJoinSwitchesRoomsAtomically(t *testing.T) {
	router, _ := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	register(t, router, "s1", "alice")

	joinRoom(t, router, "s1", "devops", "alice")
	joinRoom(t, router, "s1", "sports", "alice")

	room, ok := router.Rooms().RoomOf("s1")
	require.True(t, ok)
	require.Equal(t, "sports", room)
	require.Empty(t, router.Rooms().MembersOf("devops"))
	require.Equal(t, []string{"s1"}, router.Rooms().MembersOf("sports"))
}

func TestLeaveRoomNotifiesFormerRoomMates(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	register(t, router, "s1", "alice")
	register(t, router, "s2", "bob")
	joinRoom(t, router, "s1", "devops", "alice")
	joinRoom(t, router, "s2", "devops", "bob")

	dispatch(t, router, "s1", EventLeaveRoom, struct{}{})

	events := sender.sendsTo("s2")
	require.Len(t, events, 1)
	require.Equal(t, EventTypingIndicator, events[0].event)
	require.Equal(t, TypingIndicatorPayload{Username: "alice", IsTyping: false}, events[0].data)
	require.Empty(t, sender.sendsTo("s1"), "leaver gets no echo")

	// Second leave is a no-op.
	dispatch(t, router, "s1", EventLeaveRoom, struct{}{})
	require.Len(t, sender.sendsTo("s2"), 1)
}

func TestGroupMessageFanout(t *testing.T) {
	store := &memStore{}
	router, sender := newTestRouter(store)
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	router.HandleConnect("s3")
	register(t, router, "s1", "alice")
	register(t, router, "s2", "bob")
	joinRoom(t, router, "s1", "devops", "alice")
	joinRoom(t, router, "s2", "devops", "bob")

	dispatch(t, router, "s1", EventSendGroupMessage, SendGroupMessagePayload{
		Room: "devops", FromUser: "alice", Message: "hi",
	})

	require.Len(t, store.saved, 1)
	for _, sessionID := range []string{"s1", "s2"} {
		events := sender.sendsTo(sessionID)
		require.Len(t, events, 1, "session %s", sessionID)
		require.Equal(t, EventReceiveGroupMessage, events[0].event)
		msg := events[0].data.(StoredMessage)
		require.Equal(t, "alice", msg.FromUser)
		require.Equal(t, "hi", msg.Message)
		require.Equal(t, "devops", msg.Room)
		require.NotEmpty(t, msg.ID)
	}
	require.Empty(t, sender.sendsTo("s3"), "unregistered bystander receives nothing")
}

func TestGroupMessageEmptyDropped(t *testing.T) {
	store := &memStore{}
	router, sender := newTestRouter(store)
	router.HandleConnect("s1")
	register(t, router, "s1", "alice")
	joinRoom(t, router, "s1", "devops", "alice")

	dispatch(t, router, "s1", EventSendGroupMessage, SendGroupMessagePayload{
		Room: "devops", FromUser: "alice", Message: "   ",
	})

	require.Empty(t, store.saved)
	require.Empty(t, sender.sends)
}

func TestGroupMessagePersistFailureAbortsDelivery(t *testing.T) {
	router, sender := newTestRouter(&memStore{failing: true})
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	register(t, router, "s1", "alice")
	register(t, router, "s2", "bob")
	joinRoom(t, router, "s1", "devops", "alice")
	joinRoom(t, router, "s2", "devops", "bob")

	dispatch(t, router, "s1", EventSendGroupMessage, SendGroupMessagePayload{
		Room: "devops", FromUser: "alice", Message: "hi",
	})

	events := sender.sendsTo("s1")
	require.Len(t, events, 1)
	require.Equal(t, EventMessageFailed, events[0].event)
	require.Empty(t, sender.sendsTo("s2"), "no delivery after failed write")
}

func TestPrivateMessageOfflineRecipient(t *testing.T) {
	store := &memStore{}
	router, sender := newTestRouter(store)
	router.HandleConnect("s1")
	register(t, router, "s1", "alice")

	dispatch(t, router, "s1", EventSendPrivateMessage, SendPrivateMessagePayload{
		FromUser: "alice", ToUser: "bob", Message: "you there?",
	})

	require.Len(t, store.saved, 1, "offline recipient still gets a durable record")
	events := sender.sendsTo("s1")
	require.Len(t, events, 1)
	require.Equal(t, EventReceivePrivateMessage, events[0].event)
	require.Len(t, sender.sends, 1, "no delivery attempted to a non-existent session")
}

func TestPrivateMessageDeliveredToBothEnds(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	register(t, router, "s1", "alice")
	register(t, router, "s2", "bob")

	dispatch(t, router, "s1", EventSendPrivateMessage, SendPrivateMessagePayload{
		FromUser: "alice", ToUser: "bob", Message: "hello bob",
	})

	require.Len(t, sender.sendsTo("s1"), 1)
	require.Len(t, sender.sendsTo("s2"), 1)
	msg := sender.sendsTo("s2")[0].data.(StoredMessage)
	require.Equal(t, "alice", msg.FromUser)
	require.Equal(t, "bob", msg.ToUser)
}

func TestPrivateMessageToSelfSentOnce(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	register(t, router, "s1", "alice")

	dispatch(t, router, "s1", EventSendPrivateMessage, SendPrivateMessagePayload{
		FromUser: "alice", ToUser: "alice", Message: "note to self",
	})

	require.Len(t, sender.sendsTo("s1"), 1)
}

func TestTypingExcludesSender(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	register(t, router, "s1", "alice")
	register(t, router, "s2", "bob")
	joinRoom(t, router, "s1", "sports", "alice")
	joinRoom(t, router, "s2", "sports", "bob")

	dispatch(t, router, "s1", EventTyping, TypingPayload{Room: "sports", Username: "alice", IsTyping: true})

	require.Empty(t, sender.sendsTo("s1"))
	events := sender.sendsTo("s2")
	require.Len(t, events, 1)
	require.Equal(t, TypingIndicatorPayload{Username: "alice", IsTyping: true}, events[0].data)
}

func TestTypingRequiresRoom(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	register(t, router, "s1", "alice")

	dispatch(t, router, "s1", EventTyping, TypingPayload{Room: "sports", Username: "alice", IsTyping: true})

	require.Empty(t, sender.sends)
}

func TestLogoutBroadcastsAndClearsBinding(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	register(t, router, "s1", "alice")

	dispatch(t, router, "s1", EventLogoutUser, LogoutUserPayload{Username: "alice"})

	_, online := router.Presence().LookupSession("alice")
	require.False(t, online)
	require.Len(t, sender.broadcasts, 2)
	require.Equal(t, []string{}, sender.broadcasts[1].data)
}

func TestLogoutForForeignSessionIsNoOp(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	register(t, router, "s1", "alice")
	broadcastsBefore := len(sender.broadcasts)

	// s2 never registered alice; the guarded unregister must refuse it.
	dispatch(t, router, "s2", EventLogoutUser, LogoutUserPayload{Username: "alice"})

	_, online := router.Presence().LookupSession("alice")
	require.True(t, online)
	require.Len(t, sender.broadcasts, broadcastsBefore)
}

func TestDisconnectLeavesNoDanglingState(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")
	router.HandleConnect("s2")
	register(t, router, "s1", "alice")
	register(t, router, "s2", "bob")
	joinRoom(t, router, "s1", "sports", "alice")
	joinRoom(t, router, "s2", "sports", "bob")
	dispatch(t, router, "s1", EventTyping, TypingPayload{Room: "sports", Username: "alice", IsTyping: true})

	router.HandleDisconnect("s1")

	var stopped int
	for _, e := range sender.sendsTo("s2") {
		if e.event == EventTypingIndicator {
			payload := e.data.(TypingIndicatorPayload)
			if payload.Username == "alice" && !payload.IsTyping {
				stopped++
			}
		}
	}
	require.Equal(t, 1, stopped, "room mates see exactly one typing-stopped")

	_, online := router.Presence().LookupSession("alice")
	require.False(t, online)
	require.Equal(t, []string{"s2"}, router.Rooms().MembersOf("sports"))
	_, exists := router.Sessions().Get("s1")
	require.False(t, exists)
	require.Equal(t, []string{"bob"}, router.Presence().Snapshot())
}

func TestDisconnectOfUnregisteredSessionIsSilent(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")

	router.HandleDisconnect("s1")

	require.Empty(t, sender.sends)
	require.Empty(t, sender.broadcasts)
	require.Equal(t, 0, router.Sessions().Len())
}

func TestDispatchMalformedFrameDropped(t *testing.T) {
	router, sender := newTestRouter(&memStore{})
	router.HandleConnect("s1")

	router.Dispatch("s1", []byte("not json"))
	router.Dispatch("s1", []byte(`{"event":"register_user","data":42}`))
	router.Dispatch("s1", []byte(`{"event":"made_up","data":{}}`))

	require.Empty(t, sender.sends)
	require.Empty(t, sender.broadcasts)
}
