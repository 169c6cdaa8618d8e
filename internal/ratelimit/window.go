package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

// Limiter caps accepted events per session in a fixed window. The window is
// reset lazily on the next call, so idle sessions cost nothing.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	shards [shardCount]shard
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	count       int
	windowStart time.Time
}

func New(limit int, window time.Duration) *Limiter {
	return NewWithClock(limit, window, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock(limit int, window time.Duration, now func() time.Time) *Limiter {
	if window <= 0 {
		window = time.Second
	}
	l := &Limiter{limit: limit, window: window, now: now}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*entry)
	}
	return l
}

func (l *Limiter) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}

// Allow counts one event for the session and reports whether it is within the limit.
func (l *Limiter) Allow(sessionID string) bool {
	now := l.now()
	s := l.shard(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[sessionID]
	if e == nil || now.Sub(e.windowStart) > l.window {
		e = &entry{windowStart: now}
		s.entries[sessionID] = e
	}
	e.count++
	return e.count <= l.limit
}

// Forget drops the session's counter; called on disconnect.
func (l *Limiter) Forget(sessionID string) {
	s := l.shard(sessionID)
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
}

// Reset clears every counter.
func (l *Limiter) Reset() {
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]*entry)
		s.mu.Unlock()
	}
}

// Tracked returns the number of sessions with live counters.
func (l *Limiter) Tracked() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
