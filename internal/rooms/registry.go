package rooms

import (
	"sort"
	"sync"

	"sketchsync/server/internal/validate"
)

// Registry tracks which sessions are currently in which room. A session is in
// at most one room; rooms with no members simply have no entry.
type Registry struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
	roomOf  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]map[string]struct{}),
		roomOf:  make(map[string]string),
	}
}

// Join places the session in roomID, moving it out of any previous room.
// Invalid room ids are ignored. It returns the room the session left, if any.
func (r *Registry) Join(sessionID, roomID string) (prev string, ok bool) {
	if !validate.RoomID(roomID) {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, in := r.roomOf[sessionID]; in {
		if cur == roomID {
			return "", true
		}
		r.removeLocked(sessionID, cur)
		prev = cur
	}
	set := r.members[roomID]
	if set == nil {
		set = make(map[string]struct{})
		r.members[roomID] = set
	}
	set[sessionID] = struct{}{}
	r.roomOf[sessionID] = roomID
	return prev, true
}

// Leave removes the session from its room and returns that room.
func (r *Registry) Leave(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, in := r.roomOf[sessionID]
	if !in {
		return "", false
	}
	r.removeLocked(sessionID, cur)
	return cur, true
}

func (r *Registry) removeLocked(sessionID, roomID string) {
	delete(r.roomOf, sessionID)
	if set := r.members[roomID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
}

// Members returns the room's sessions except exclude, sorted for stable fan-out.
func (r *Registry) Members(roomID, exclude string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[roomID]
	out := make([]string, 0, len(set))
	for id := range set {
		if id != exclude {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.roomOf[sessionID]
	return room, ok
}

func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}

// Rooms is the number of rooms with at least one member.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Registry) Reset() {
	r.mu.Lock()
	r.members = make(map[string]map[string]struct{})
	r.roomOf = make(map[string]string)
	r.mu.Unlock()
}
