package chat

import "sync"

// Session is the transient state of one live connection: an opaque id, the
// username bound by register_user (empty until then), and the room the
// session currently occupies (empty when in none). Session records are owned
// by the SessionTable; other components reference them by id only.
type Session struct {
	ID          string
	Username    string
	CurrentRoom string
}

// Registered reports whether a username has been bound to the session.
func (s *Session) Registered() bool {
	return s.Username != ""
}

// InRoom reports whether the session currently occupies a room.
func (s *Session) InRoom() bool {
	return s.CurrentRoom != ""
}

// SessionTable owns the session records for all live connections. Records are
// created on transport connect and released on disconnect; there are no
// reconnection semantics, a new connection is always a brand-new session.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*Session)}
}

// Connect creates and stores the record for a new connection.
func (t *SessionTable) Connect(sessionID string) *Session {
	sess := &Session{ID: sessionID}
	t.mu.Lock()
	t.sessions[sessionID] = sess
	t.mu.Unlock()
	return sess
}

// Get returns the record for sessionID, if still connected.
func (t *SessionTable) Get(sessionID string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[sessionID]
	return sess, ok
}

// Release drops the record for sessionID and returns it for final cleanup.
func (t *SessionTable) Release(sessionID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[sessionID]
	if ok {
		delete(t.sessions, sessionID)
	}
	return sess, ok
}

// Len returns the number of live sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
