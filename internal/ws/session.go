package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const writeTimeout = 10 * time.Second

// session is one client connection. Outbound frames go through a bounded
// queue drained by a single writer, so broadcasters never block on a socket.
type session struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newSession(id string, c *websocket.Conn, buffer int, cancel context.CancelFunc) *session {
	if buffer <= 0 {
		buffer = 256
	}
	return &session{id: id, conn: c, cancel: cancel, send: make(chan []byte, buffer)}
}

func (s *session) ID() string { return s.id }

// Send queues msg without blocking. A full queue marks the session as a slow
// consumer and tears it down.
func (s *session) Send(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		s.closed = true
		metricSlowConsumers.Inc()
		log.Printf("[ws] sid=%s send queue full, closing", s.id)
		s.cancel()
		return false
	}
}

func (s *session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				log.Printf("[ws] sid=%s write: %v", s.id, err)
				s.cancel()
				return
			}
			metricFramesOut.Inc()
		}
	}
}

// heartbeat pings every interval; a pong missing for timeout ends the session.
// Pongs are only processed while the read loop is running.
func (s *session) heartbeat(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[ws] sid=%s heartbeat failed: %v", s.id, err)
				}
				s.cancel()
				return
			}
		}
	}
}
