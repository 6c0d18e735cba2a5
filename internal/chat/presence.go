package chat

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Presence is the single source of truth for which usernames are online and
// which session currently speaks for each of them. A later registration for
// the same username overwrites the earlier session's entry; the earlier
// session stays connected but no longer receives private messages.
type Presence struct {
	mu     sync.RWMutex
	byUser map[string]string
}

// NewPresence creates an empty presence registry.
func NewPresence() *Presence {
	return &Presence{byUser: make(map[string]string)}
}

// Register binds username to sessionID, overwriting any prior binding.
func (p *Presence) Register(username, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUser[username] = sessionID
}

// Unregister removes the binding for username, but only when sessionID still
// owns it. This guards against a stale disconnect erasing a newer
// registration for the same username. Reports whether an entry was removed.
func (p *Presence) Unregister(username, sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.byUser[username]
	if !ok || current != sessionID {
		return false
	}
	delete(p.byUser, username)
	return true
}

// LookupSession returns the session currently bound to username.
func (p *Presence) LookupSession(username string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sessionID, ok := p.byUser[username]
	return sessionID, ok
}

// Snapshot returns the sorted set of registered usernames, suitable for an
// online_users broadcast.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	users := lo.Keys(p.byUser)
	p.mu.RUnlock()

	sort.Strings(users)
	return users
}
