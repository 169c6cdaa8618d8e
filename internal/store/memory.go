package store

import (
	"context"
	"sync"

	"sketchsync/server/internal/types"
)

// MemoryBackend keeps history in process memory. It is lost on restart.
type MemoryBackend struct {
	mu    sync.RWMutex
	rooms map[string][]types.Stroke
	fail  error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rooms: make(map[string][]types.Stroke)}
}

// FailWith makes every subsequent call return err, simulating an outage.
// A nil err restores normal operation.
func (m *MemoryBackend) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *MemoryBackend) Append(ctx context.Context, roomID string, strokes []types.Stroke) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.rooms[roomID] = append(m.rooms[roomID], strokes...)
	return nil
}

func (m *MemoryBackend) Range(ctx context.Context, roomID string) ([]types.Stroke, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return nil, m.fail
	}
	src := m.rooms[roomID]
	out := make([]types.Stroke, len(src))
	copy(out, src)
	return out, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	delete(m.rooms, roomID)
	return nil
}

func (m *MemoryBackend) Trim(ctx context.Context, roomID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if l := len(m.rooms[roomID]); keep >= 0 && l > keep {
		m.rooms[roomID] = append([]types.Stroke(nil), m.rooms[roomID][l-keep:]...)
	}
	return nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fail
}

func (m *MemoryBackend) Close() error { return nil }
