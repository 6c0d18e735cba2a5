package chat

import "sync"

// DefaultRooms is the room catalog the service ships with. The catalog is
// fixed at startup; events referencing rooms outside it are dropped rather
// than creating ad-hoc membership sets.
var DefaultRooms = []string{"devops", "cloud computing", "covid19", "sports", "nodeJS"}

// Catalog is the fixed, enumerable set of rooms known to the server.
type Catalog struct {
	names map[string]struct{}
	order []string
}

// NewCatalog builds a catalog from the configured room names. Empty names are
// ignored; duplicates collapse.
func NewCatalog(rooms []string) *Catalog {
	c := &Catalog{names: make(map[string]struct{}, len(rooms))}
	for _, room := range rooms {
		if room == "" {
			continue
		}
		if _, ok := c.names[room]; ok {
			continue
		}
		c.names[room] = struct{}{}
		c.order = append(c.order, room)
	}
	return c
}

// Contains reports whether room is part of the catalog.
func (c *Catalog) Contains(room string) bool {
	_, ok := c.names[room]
	return ok
}

// Rooms returns the catalog in configuration order.
func (c *Catalog) Rooms() []string {
	return append([]string(nil), c.order...)
}

// Rooms tracks which sessions occupy which room. A session is a member of at
// most one room at a time; the router leaves the old room before joining a
// new one.
type Rooms struct {
	mu        sync.RWMutex
	members   map[string]map[string]struct{}
	bySession map[string]string
}

// NewRooms creates an empty membership tracker.
func NewRooms() *Rooms {
	return &Rooms{
		members:   make(map[string]map[string]struct{}),
		bySession: make(map[string]string),
	}
}

// Join adds sessionID to room's member set. Callers must have removed the
// session from its previous room first; Join does not auto-correct.
func (r *Rooms) Join(sessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[room]
	if !ok {
		set = make(map[string]struct{})
		r.members[room] = set
	}
	set[sessionID] = struct{}{}
	r.bySession[sessionID] = room
}

// Leave removes sessionID from its current room, if any, and returns the room
// it was removed from. Calling Leave on a session that is not in a room is a
// no-op.
func (r *Rooms) Leave(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.bySession[sessionID]
	if !ok {
		return "", false
	}
	delete(r.bySession, sessionID)
	if set, ok := r.members[room]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	return room, true
}

// MembersOf returns the session ids currently in room.
func (r *Rooms) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[room]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// RoomOf returns the room sessionID currently occupies.
func (r *Rooms) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.bySession[sessionID]
	return room, ok
}
