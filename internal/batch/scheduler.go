// Package batch coalesces high-frequency strokes on the sending side into
// periodic draw-batch frames.
package batch

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"sketchsync/server/internal/types"
)

const (
	DefaultInterval = 30 * time.Millisecond
	// MaxBatch caps strokes per frame so a burst never exceeds the server's
	// message size limit.
	MaxBatch = 500
)

// Sender delivers one batch for a room.
type Sender func(roomID string, strokes []types.Stroke) error

type Scheduler struct {
	interval time.Duration
	send     Sender

	mu     sync.Mutex
	queued map[string][]types.Stroke
}

func New(interval time.Duration, send Sender) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval, send: send, queued: make(map[string][]types.Stroke)}
}

// Add queues a stroke for the next tick.
func (s *Scheduler) Add(roomID string, st types.Stroke) {
	s.mu.Lock()
	s.queued[roomID] = append(s.queued[roomID], st)
	s.mu.Unlock()
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queued {
		n += len(q)
	}
	return n
}

// Flush sends everything queued, one frame per room (split at MaxBatch).
// Strokes that fail to send are put back ahead of anything queued since.
func (s *Scheduler) Flush() error {
	s.mu.Lock()
	taken := s.queued
	s.queued = make(map[string][]types.Stroke)
	s.mu.Unlock()

	roomIDs := make([]string, 0, len(taken))
	for id := range taken {
		roomIDs = append(roomIDs, id)
	}
	sort.Strings(roomIDs)

	var firstErr error
	for _, roomID := range roomIDs {
		q := taken[roomID]
		for len(q) > 0 {
			n := len(q)
			if n > MaxBatch {
				n = MaxBatch
			}
			if err := s.send(roomID, q[:n]); err != nil {
				s.requeue(roomID, q)
				if firstErr == nil {
					firstErr = err
				}
				break
			}
			q = q[n:]
		}
	}
	return firstErr
}

func (s *Scheduler) requeue(roomID string, head []types.Stroke) {
	s.mu.Lock()
	s.queued[roomID] = append(append([]types.Stroke(nil), head...), s.queued[roomID]...)
	s.mu.Unlock()
}

// Run flushes every interval until ctx is done, then flushes once more.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.Flush()
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				log.Printf("[batch] flush failed, will retry: %v", err)
			}
		}
	}
}
