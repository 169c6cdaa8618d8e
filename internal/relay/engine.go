package relay

import (
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"sketchsync/server/internal/rooms"
	"sketchsync/server/internal/types"
	"sketchsync/server/internal/wire"
)

// Conn is the transport side of one session. Send must not block.
type Conn interface {
	ID() string
	Send(msg []byte) bool
}

// History is the persistence the engine writes behind and replays from.
type History interface {
	Append(roomID string, s types.Stroke)
	AppendBatch(roomID string, strokes []types.Stroke)
	Clear(roomID string)
	ReadAsync(roomID string) <-chan []types.Stroke
}

// Limiter gates mutating events per session.
type Limiter interface {
	Allow(sessionID string) bool
	Forget(sessionID string)
}

type Options struct {
	// ReadTimeout bounds how long a join waits for its history replay.
	ReadTimeout time.Duration
	// MaxPending caps frames held for a session during its replay. It should
	// leave room for the replay itself in the session's send queue.
	MaxPending int
	Debug      bool
}

// maxRefresh bounds how many times a join re-reads history after its held
// strokes overflowed.
const maxRefresh = 3

const roomLockShards = 64

// Engine routes inbound events. All mutations of one room are applied under
// that room's lock shard, so fan-out order and history order are the same.
type Engine struct {
	registry *rooms.Registry
	history  History
	limiter  Limiter
	opts     Options

	locks [roomLockShards]sync.Mutex

	mu    sync.RWMutex
	peers map[string]*peer
}

// peer wraps a Conn. While a join replay is in flight, live messages are
// held so the replay always arrives first. At most max frames are held;
// cursor frames give way first, and once strokes alone overflow they are
// discarded and the peer is marked stale so the join reads history again.
type peer struct {
	conn Conn
	max  int

	mu        sync.Mutex
	replaying bool
	stale     bool
	pending   []held
}

type held struct {
	msg       []byte
	ephemeral bool
}

func New(reg *rooms.Registry, h History, lim Limiter, opts Options) *Engine {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = 255
	}
	return &Engine{registry: reg, history: h, limiter: lim, opts: opts, peers: make(map[string]*peer)}
}

func (e *Engine) Connect(c Conn) {
	e.mu.Lock()
	e.peers[c.ID()] = &peer{conn: c, max: e.opts.MaxPending}
	e.mu.Unlock()
	gaugeSessions.Inc()
}

// Disconnect stops the session being a fan-out target immediately. Peers are
// not notified.
func (e *Engine) Disconnect(sessionID string) {
	e.mu.Lock()
	_, ok := e.peers[sessionID]
	delete(e.peers, sessionID)
	e.mu.Unlock()
	if !ok {
		return
	}
	e.registry.Leave(sessionID)
	e.limiter.Forget(sessionID)
	gaugeSessions.Dec()
	gaugeRooms.Set(float64(e.registry.Rooms()))
}

// Sessions returns the number of connected sessions.
func (e *Engine) Sessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.peers)
}

func (e *Engine) peer(id string) *peer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.peers[id]
}

// HandleMessage processes one inbound frame. Rejected input is dropped
// without any reply to the sender.
func (e *Engine) HandleMessage(sessionID string, raw []byte) {
	p := e.peer(sessionID)
	if p == nil {
		return
	}
	env, err := wire.ParseEnvelope(raw)
	if err != nil {
		e.drop(sessionID, "malformed", err)
		return
	}
	if env.Rated() && !e.limiter.Allow(sessionID) {
		e.drop(sessionID, "rate_limited", nil)
		return
	}
	msg, err := wire.Decode(env)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, wire.ErrUnknownType) {
			reason = "unknown_type"
		}
		e.drop(sessionID, reason, err)
		return
	}

	switch m := msg.(type) {
	case wire.JoinRoom:
		e.join(p, m.RoomID)
	case wire.DrawLine:
		e.drawLine(sessionID, m)
	case wire.DrawBatch:
		if len(m.Strokes) == 0 {
			e.drop(sessionID, "empty_batch", nil)
			return
		}
		e.drawBatch(sessionID, m)
	case wire.MouseMove:
		e.mouseMove(sessionID, m)
	case wire.Clear:
		e.clear(sessionID, m.RoomID)
	}
	metricEvents.WithLabelValues(msg.Kind()).Inc()
}

func shardOf(roomID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return h.Sum32() % roomLockShards
}

func (e *Engine) lockRoom(roomID string) func() {
	m := &e.locks[shardOf(roomID)]
	m.Lock()
	return m.Unlock
}

// lockRooms locks two rooms in shard order.
func (e *Engine) lockRooms(a, b string) func() {
	i, j := shardOf(a), shardOf(b)
	if i == j {
		return e.lockRoom(a)
	}
	if i > j {
		i, j = j, i
	}
	e.locks[i].Lock()
	e.locks[j].Lock()
	return func() {
		e.locks[j].Unlock()
		e.locks[i].Unlock()
	}
}

// join registers the session and replays history to it alone. The read is
// queued under the room lock, so it covers exactly the strokes accepted
// before the join; later strokes reach the session live.
func (e *Engine) join(p *peer, roomID string) {
	id := p.conn.ID()
	// Moving rooms takes both locks so no broadcast in the old room is mid
	// fan-out while the session leaves it.
	var unlock func()
	if prev, in := e.registry.RoomOf(id); in && prev != roomID {
		unlock = e.lockRooms(prev, roomID)
	} else {
		unlock = e.lockRoom(roomID)
	}
	if _, ok := e.registry.Join(id, roomID); !ok {
		unlock()
		return
	}
	p.beginReplay()
	res := e.history.ReadAsync(roomID)
	unlock()
	gaugeRooms.Set(float64(e.registry.Rooms()))

	for attempt := 0; ; attempt++ {
		strokes := e.await(res, id, roomID)
		replay := encodeReplay(roomID, strokes)

		unlock := e.lockRoom(roomID)
		if !p.isStale() || attempt == maxRefresh {
			if p.isStale() {
				log.Printf("[relay] sid=%s room=%s replay still overflowing after %d refreshes", id, roomID, attempt)
			}
			p.endReplay(replay)
			unlock()
			if replay != nil {
				metricReplayStrokes.Observe(float64(len(strokes)))
			}
			if e.opts.Debug {
				log.Printf("[relay] sid=%s joined room=%s replay=%d refreshes=%d", id, roomID, len(strokes), attempt)
			}
			return
		}
		// Held strokes were discarded; a new read queued now covers them.
		p.refresh()
		res = e.history.ReadAsync(roomID)
		unlock()
		metricReplayRefreshes.Inc()
	}
}

func (e *Engine) await(res <-chan []types.Stroke, id, roomID string) []types.Stroke {
	timer := time.NewTimer(e.opts.ReadTimeout)
	defer timer.Stop()
	select {
	case strokes := <-res:
		return strokes
	case <-timer.C:
		metricReplayTimeouts.Inc()
		log.Printf("[relay] history read timed out sid=%s room=%s", id, roomID)
		return nil
	}
}

func encodeReplay(roomID string, strokes []types.Stroke) []byte {
	if len(strokes) == 0 {
		return nil
	}
	b, err := wire.Encode(wire.TypeCanvasHistory, strokes)
	if err != nil {
		log.Printf("[relay] encode history room=%s: %v", roomID, err)
		return nil
	}
	return b
}

func (e *Engine) drawLine(sender string, m wire.DrawLine) {
	msg, err := wire.Encode(wire.TypeDrawLine, m.Stroke)
	if err != nil {
		e.drop(sender, "encode", err)
		return
	}
	unlock := e.lockRoom(m.RoomID)
	defer unlock()
	e.broadcast(m.RoomID, sender, msg, false)
	e.history.Append(m.RoomID, m.Stroke)
}

func (e *Engine) drawBatch(sender string, m wire.DrawBatch) {
	msg, err := wire.Encode(wire.TypeDrawBatch, m.Strokes)
	if err != nil {
		e.drop(sender, "encode", err)
		return
	}
	unlock := e.lockRoom(m.RoomID)
	defer unlock()
	e.broadcast(m.RoomID, sender, msg, false)
	e.history.AppendBatch(m.RoomID, m.Strokes)
}

// mouseMove is presence only: never persisted, not ordered against strokes.
func (e *Engine) mouseMove(sender string, m wire.MouseMove) {
	msg, err := wire.Encode(wire.TypeMouseMove, wire.Cursor{X: m.X, Y: m.Y, SessionID: sender})
	if err != nil {
		e.drop(sender, "encode", err)
		return
	}
	e.broadcast(m.RoomID, sender, msg, true)
}

func (e *Engine) clear(sender, roomID string) {
	msg, err := wire.Encode(wire.TypeClear, nil)
	if err != nil {
		e.drop(sender, "encode", err)
		return
	}
	unlock := e.lockRoom(roomID)
	defer unlock()
	e.broadcast(roomID, sender, msg, false)
	e.history.Clear(roomID)
	log.Printf("[relay] room=%s cleared by sid=%s", roomID, sender)
}

// broadcast delivers msg to every member of the room except the sender.
// Ephemeral frames (cursors) are the first to go when a held queue is full.
func (e *Engine) broadcast(roomID, sender string, msg []byte, ephemeral bool) {
	for _, id := range e.registry.Members(roomID, sender) {
		p := e.peer(id)
		if p == nil {
			continue
		}
		if !p.deliver(msg, ephemeral) {
			metricPeerRefused.Inc()
			continue
		}
		metricFanout.Inc()
	}
}

func (e *Engine) drop(sessionID, reason string, err error) {
	metricDrops.WithLabelValues(reason).Inc()
	if e.opts.Debug {
		log.Printf("[relay] drop sid=%s reason=%s err=%v", sessionID, reason, err)
	}
}

func (p *peer) beginReplay() {
	p.mu.Lock()
	p.replaying = true
	p.stale = false
	p.pending = nil
	p.mu.Unlock()
}

func (p *peer) isStale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stale
}

// refresh clears the stale mark; the caller queues a new read under the
// room lock.
func (p *peer) refresh() {
	p.mu.Lock()
	p.stale = false
	p.mu.Unlock()
}

// endReplay sends the replay (if any) followed by everything held meanwhile.
func (p *peer) endReplay(replay []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if replay != nil {
		p.conn.Send(replay)
	}
	for _, h := range p.pending {
		if !p.conn.Send(h.msg) {
			break
		}
	}
	p.pending = nil
	p.replaying = false
	p.stale = false
}

func (p *peer) deliver(msg []byte, ephemeral bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.replaying {
		return p.conn.Send(msg)
	}
	if p.stale && !ephemeral {
		// Covered by the next history read.
		return true
	}
	if len(p.pending) < p.max {
		p.pending = append(p.pending, held{msg: msg, ephemeral: ephemeral})
		return true
	}
	if ephemeral {
		metricHeldDropped.WithLabelValues("cursor").Inc()
		return true
	}
	for i, h := range p.pending {
		if h.ephemeral {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			p.pending = append(p.pending, held{msg: msg})
			metricHeldDropped.WithLabelValues("cursor").Inc()
			return true
		}
	}
	metricHeldDropped.WithLabelValues("stroke").Add(float64(len(p.pending)) + 1)
	p.pending = nil
	p.stale = true
	return true
}
