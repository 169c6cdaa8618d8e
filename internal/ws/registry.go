package ws

import (
	"sync"

	"nhooyr.io/websocket"
)

// Registry tracks live sessions so shutdown can close them all.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func NewRegistry() *Registry { return &Registry{sessions: make(map[string]*session)} }

func (r *Registry) add(s *session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll sends a going-away close to every session.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	list := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()
	for _, s := range list {
		s.markClosed()
		_ = s.conn.Close(websocket.StatusGoingAway, reason)
		s.cancel()
	}
}
