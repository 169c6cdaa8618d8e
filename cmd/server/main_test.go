package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"sketchsync/server/internal/store"
	"sketchsync/server/internal/types"
)

type countingBackend struct {
	*store.MemoryBackend
	closes atomic.Int32
	block  chan struct{}
}

func (c *countingBackend) Append(ctx context.Context, roomID string, s []types.Stroke) error {
	if c.block != nil {
		<-c.block
	}
	return c.MemoryBackend.Append(ctx, roomID, s)
}

func (c *countingBackend) Close() error {
	c.closes.Add(1)
	return nil
}

func TestCloseHistoryClosesBackendOnce(t *testing.T) {
	b := &countingBackend{MemoryBackend: store.NewMemoryBackend()}
	hist := store.NewHistory(b, store.Options{Workers: 2, QueueSize: 4, OpTimeout: time.Second})
	hist.Append("r", types.Stroke{})

	closeHistory(context.Background(), hist, b)
	if n := b.closes.Load(); n != 1 {
		t.Fatalf("expected backend closed once, got %d", n)
	}
}

func TestCloseHistoryClosesBackendWhenDrainTimesOut(t *testing.T) {
	b := &countingBackend{MemoryBackend: store.NewMemoryBackend(), block: make(chan struct{})}
	defer close(b.block)
	hist := store.NewHistory(b, store.Options{Workers: 1, QueueSize: 4, OpTimeout: time.Second})
	hist.Append("r", types.Stroke{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	closeHistory(ctx, hist, b)
	if n := b.closes.Load(); n != 1 {
		t.Fatalf("expected backend closed once after a stalled drain, got %d", n)
	}
}
