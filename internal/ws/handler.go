// Package ws is the WebSocket transport: it upgrades connections, assigns
// session ids and feeds frames into the relay engine.
package ws

import (
	"context"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"sketchsync/server/internal/config"
	"sketchsync/server/internal/ratelimit"
	"sketchsync/server/internal/relay"
)

type Server struct {
	Cfg    config.Config
	Engine *relay.Engine
	Conns  *ratelimit.ConnLimiter
	Reg    *Registry
}

func NewServer(cfg config.Config, eng *relay.Engine, conns *ratelimit.ConnLimiter, reg *Registry) *Server {
	return &Server{Cfg: cfg, Engine: eng, Conns: conns, Reg: reg}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)
	if !s.Conns.Allow(ip) {
		metricConnections.WithLabelValues("throttled").Inc()
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	c, err := websocket.Accept(w, r, acceptOptions(s.Cfg.Server.AllowedOrigins))
	if err != nil {
		metricConnections.WithLabelValues("rejected").Inc()
		log.Printf("[ws] accept from %s: %v", ip, err)
		return
	}
	metricConnections.WithLabelValues("accepted").Inc()
	if s.Cfg.WS.MaxMessageBytes > 0 {
		c.SetReadLimit(s.Cfg.WS.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess := newSession(uuid.New().String(), c, s.Cfg.WS.SendBuffer, cancel)
	s.Reg.add(sess)
	s.Engine.Connect(sess)
	if s.Cfg.Debug() {
		log.Printf("[ws] sid=%s connected from %s", sess.id, ip)
	}

	go sess.writeLoop(ctx)
	go sess.heartbeat(ctx, s.Cfg.WS.PingInterval, s.Cfg.WS.PingTimeout)

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		metricFramesIn.Inc()
		s.Engine.HandleMessage(sess.id, data)
	}

	sess.markClosed()
	s.Engine.Disconnect(sess.id)
	s.Reg.remove(sess.id)
	cancel()
	_ = c.Close(websocket.StatusNormalClosure, "bye")
	if s.Cfg.Debug() {
		log.Printf("[ws] sid=%s disconnected", sess.id)
	}
}

// acceptOptions turns configured origins ("*" or full origins) into the
// host patterns the websocket library matches against.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		opts.OriginPatterns = append(opts.OriginPatterns, o)
	}
	return opts
}

// ClientIP prefers the first X-Forwarded-For hop, then the socket peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
