package store

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"sketchsync/server/internal/types"
)

var (
	ErrClosed    = errors.New("history closed")
	errQueueFull = errors.New("queue full")
)

// Options tunes the write-behind layer.
type Options struct {
	Workers     int           // ordered queues; a room always maps to the same one
	QueueSize   int           // capacity per queue; writes beyond it are dropped
	OpTimeout   time.Duration // per backend call
	ReadTimeout time.Duration // how long Read waits for its turn plus the backend
	MaxStrokes  int           // keep at most this many strokes per room; 0 keeps all
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 4096
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 2 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 3 * time.Second
	}
	return o
}

type opKind int

const (
	opAppend opKind = iota
	opClear
	opRead
)

func (k opKind) String() string {
	switch k {
	case opAppend:
		return "append"
	case opClear:
		return "clear"
	default:
		return "read"
	}
}

type op struct {
	kind    opKind
	roomID  string
	strokes []types.Stroke
	reply   chan []types.Stroke
	gen     uint64 // clear generation current when the op was accepted
}

// History is the per-room stroke log. Every call returns without waiting on
// the backend; failures are logged and counted, never returned.
type History struct {
	backend Backend
	opts    Options

	mu     sync.RWMutex
	closed bool
	queues []chan op
	wg     sync.WaitGroup

	// A clear that finds its queue full is owed instead of dropped: the
	// room's next op performs the delete first, and appends accepted before
	// the clear are discarded.
	gen  atomic.Uint64
	omu  sync.Mutex
	owed map[string]uint64
}

func NewHistory(b Backend, opts Options) *History {
	opts = opts.withDefaults()
	h := &History{backend: b, opts: opts, queues: make([]chan op, opts.Workers), owed: make(map[string]uint64)}
	for i := range h.queues {
		h.queues[i] = make(chan op, opts.QueueSize)
		h.wg.Add(1)
		go h.worker(h.queues[i])
	}
	return h
}

func (h *History) queueFor(roomID string) chan op {
	f := fnv.New32a()
	_, _ = f.Write([]byte(roomID))
	return h.queues[f.Sum32()%uint32(len(h.queues))]
}

// enqueue never blocks.
func (h *History) enqueue(o op) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	o.gen = h.gen.Load()
	select {
	case h.queueFor(o.roomID) <- o:
		gaugeQueueDepth.Inc()
		return nil
	default:
		return errQueueFull
	}
}

func (h *History) Append(roomID string, s types.Stroke) {
	h.AppendBatch(roomID, []types.Stroke{s})
}

func (h *History) AppendBatch(roomID string, strokes []types.Stroke) {
	if len(strokes) == 0 {
		return
	}
	if err := h.enqueue(op{kind: opAppend, roomID: roomID, strokes: strokes}); err != nil {
		metricQueueDrops.Inc()
		log.Printf("[store] %v, dropped append room=%s n=%d", err, roomID, len(strokes))
	}
}

// Clear truncates the room's log. Unlike appends it is never dropped for a
// full queue.
func (h *History) Clear(roomID string) {
	err := h.enqueue(op{kind: opClear, roomID: roomID})
	if err == nil {
		return
	}
	if errors.Is(err, ErrClosed) {
		log.Printf("[store] closed, dropped clear room=%s", roomID)
		return
	}
	h.omu.Lock()
	h.owed[roomID] = h.gen.Add(1)
	h.omu.Unlock()
	metricDeferredClears.Inc()
	log.Printf("[store] queue full, clear deferred room=%s", roomID)
}

func (h *History) owedClear(roomID string) (uint64, bool) {
	h.omu.Lock()
	defer h.omu.Unlock()
	g, ok := h.owed[roomID]
	return g, ok
}

// settle performs an owed clear for the room before o runs. It reports false
// when o was accepted before that clear and must be skipped.
func (h *History) settle(o op) bool {
	g, ok := h.owedClear(o.roomID)
	if !ok {
		return true
	}
	if o.kind == opAppend && o.gen < g {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.OpTimeout)
	defer cancel()
	start := time.Now()
	err := h.backend.Delete(ctx, o.roomID)
	observe("clear", start, err)
	if err != nil {
		log.Printf("[store] deferred clear room=%s failed: %v", o.roomID, err)
		return true
	}
	h.omu.Lock()
	if h.owed[o.roomID] == g {
		delete(h.owed, o.roomID)
	}
	h.omu.Unlock()
	return true
}

// ReadAsync queues a read behind every write already accepted for the room.
// The channel yields exactly one value; nil means empty or unavailable.
func (h *History) ReadAsync(roomID string) <-chan []types.Stroke {
	reply := make(chan []types.Stroke, 1)
	if h.enqueue(op{kind: opRead, roomID: roomID, reply: reply}) == nil {
		return reply
	}
	// Saturated queue: read the backend directly rather than refusing the join.
	// A room with an owed clear reads as empty until the delete lands.
	go func() {
		if _, owed := h.owedClear(roomID); owed {
			reply <- nil
			return
		}
		reply <- h.rangeNow(roomID)
	}()
	return reply
}

// Read returns the room's full log in append order, or nil on failure,
// timeout, or ctx cancellation.
func (h *History) Read(ctx context.Context, roomID string) []types.Stroke {
	ctx, cancel := context.WithTimeout(ctx, h.opts.ReadTimeout)
	defer cancel()
	select {
	case s := <-h.ReadAsync(roomID):
		return s
	case <-ctx.Done():
		log.Printf("[store] read room=%s: %v", roomID, ctx.Err())
		return nil
	}
}

// ReadTimeout is the bound callers should apply when waiting on ReadAsync.
func (h *History) ReadTimeout() time.Duration { return h.opts.ReadTimeout }

func (h *History) Ping(ctx context.Context) error { return h.backend.Ping(ctx) }

// Pending counts queued operations across all workers.
func (h *History) Pending() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, q := range h.queues {
		n += len(q)
	}
	return n
}

// Close stops accepting work and waits for queued operations, up to ctx.
func (h *History) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.closed = true
	for _, q := range h.queues {
		close(q)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.omu.Lock()
	owed := make([]string, 0, len(h.owed))
	for roomID := range h.owed {
		owed = append(owed, roomID)
	}
	h.owed = make(map[string]uint64)
	h.omu.Unlock()
	for _, roomID := range owed {
		if err := h.backend.Delete(ctx, roomID); err != nil {
			log.Printf("[store] deferred clear room=%s failed at close: %v", roomID, err)
		}
	}
	return h.backend.Close()
}

func (h *History) worker(q <-chan op) {
	defer h.wg.Done()
	for o := range q {
		gaugeQueueDepth.Dec()
		h.run(o)
	}
}

func (h *History) run(o op) {
	if !h.settle(o) {
		metricQueueDrops.Inc()
		return
	}
	if o.kind == opRead {
		o.reply <- h.rangeNow(o.roomID)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.OpTimeout)
	defer cancel()
	start := time.Now()
	var err error
	switch o.kind {
	case opAppend:
		err = h.backend.Append(ctx, o.roomID, o.strokes)
		if err == nil && h.opts.MaxStrokes > 0 {
			err = h.backend.Trim(ctx, o.roomID, h.opts.MaxStrokes)
		}
	case opClear:
		err = h.backend.Delete(ctx, o.roomID)
	}
	observe(o.kind.String(), start, err)
	if err != nil {
		log.Printf("[store] %s room=%s n=%d failed: %v", o.kind, o.roomID, len(o.strokes), err)
	}
}

func (h *History) rangeNow(roomID string) []types.Stroke {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.OpTimeout)
	defer cancel()
	start := time.Now()
	s, err := h.backend.Range(ctx, roomID)
	observe("read", start, err)
	if err != nil {
		log.Printf("[store] read room=%s failed: %v", roomID, err)
		return nil
	}
	return s
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metricOps.WithLabelValues(op, result).Inc()
	metricOpMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}
