package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sketchsync/server/internal/types"
)

type recorder struct {
	mu      sync.Mutex
	batches map[string][][]types.Stroke
	fail    error
}

func (r *recorder) send(roomID string, s []types.Stroke) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if r.batches == nil {
		r.batches = make(map[string][][]types.Stroke)
	}
	r.batches[roomID] = append(r.batches[roomID], append([]types.Stroke(nil), s...))
	return nil
}

func (r *recorder) count(roomID string) (frames, strokes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.batches[roomID] {
		frames++
		strokes += len(b)
	}
	return
}

func at(x float64) types.Stroke {
	return types.Stroke{CurrentPoint: types.Point{X: x, Y: x}, Color: "#000000"}
}

func TestFlushCoalescesPerRoom(t *testing.T) {
	rec := &recorder{}
	s := New(time.Hour, rec.send)
	for i := 0; i < 10; i++ {
		s.Add("a", at(float64(i)))
	}
	s.Add("b", at(1))
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if f, n := rec.count("a"); f != 1 || n != 10 {
		t.Fatalf("room a: expected 1 frame of 10, got %d frames %d strokes", f, n)
	}
	if f, _ := rec.count("b"); f != 1 {
		t.Fatalf("room b: expected 1 frame, got %d", f)
	}
	for i, st := range rec.batches["a"][0] {
		if st.CurrentPoint.X != float64(i) {
			t.Fatalf("order broken at %d", i)
		}
	}
	if s.Pending() != 0 {
		t.Fatalf("queue should be empty after flush")
	}
}

func TestFlushEmptySendsNothing(t *testing.T) {
	rec := &recorder{}
	s := New(0, rec.send)
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(rec.batches) != 0 {
		t.Fatalf("empty flush must not send")
	}
}

func TestFlushSplitsLargeBursts(t *testing.T) {
	rec := &recorder{}
	s := New(time.Hour, rec.send)
	for i := 0; i < MaxBatch*2+1; i++ {
		s.Add("a", at(float64(i)))
	}
	_ = s.Flush()
	if f, n := rec.count("a"); f != 3 || n != MaxBatch*2+1 {
		t.Fatalf("expected 3 frames totalling %d, got %d frames %d strokes", MaxBatch*2+1, f, n)
	}
}

func TestFailedFlushKeepsStrokes(t *testing.T) {
	rec := &recorder{fail: errors.New("socket closed")}
	s := New(time.Hour, rec.send)
	s.Add("a", at(1))
	s.Add("a", at(2))
	if err := s.Flush(); err == nil {
		t.Fatalf("expected send error")
	}
	s.Add("a", at(3))
	if s.Pending() != 3 {
		t.Fatalf("expected 3 pending, got %d", s.Pending())
	}

	rec.mu.Lock()
	rec.fail = nil
	rec.mu.Unlock()
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got := rec.batches["a"][0]
	for i, st := range got {
		if st.CurrentPoint.X != float64(i+1) {
			t.Fatalf("retry reordered strokes: %+v", got)
		}
	}
}

func TestRunFlushesOnTickAndStop(t *testing.T) {
	rec := &recorder{}
	s := New(10*time.Millisecond, rec.send)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Add("a", at(1))
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, n := rec.count("a"); n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tick never flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Add("a", at(2))
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, n := rec.count("a"); n != 2 {
		t.Fatalf("final flush missing, got %d strokes", n)
	}
}
