package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sketchsync/server/internal/api"
	"sketchsync/server/internal/config"
	"sketchsync/server/internal/discovery"
	"sketchsync/server/internal/health"
	"sketchsync/server/internal/ratelimit"
	"sketchsync/server/internal/relay"
	"sketchsync/server/internal/rooms"
	"sketchsync/server/internal/store"
	"sketchsync/server/internal/ws"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	backend, err := store.OpenBackend(cfg)
	if err != nil {
		log.Fatalf("history backend: %v", err)
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := backend.Ping(pingCtx); err != nil {
		log.Printf("[store] %s backend unreachable, continuing without persistence until it recovers: %v", cfg.History.Backend, err)
	}
	pingCancel()

	hist := store.NewHistory(backend, store.Options{
		Workers:     cfg.History.Workers,
		QueueSize:   cfg.History.QueueSize,
		OpTimeout:   cfg.History.OpTimeout,
		ReadTimeout: cfg.History.ReadTimeout,
		MaxStrokes:  cfg.History.MaxStrokes,
	})
	members := rooms.NewRegistry()
	limiter := ratelimit.New(cfg.RateLimit.DrawPerWindow, cfg.RateLimit.Window)
	conns := ratelimit.NewConnLimiter(cfg.RateLimit.ConnPerSec, cfg.RateLimit.ConnBurst)
	// One slot of the send queue is left for the replay frame.
	maxPending := cfg.WS.SendBuffer - 1
	if maxPending < 1 {
		maxPending = 1
	}
	engine := relay.New(members, hist, limiter, relay.Options{
		ReadTimeout: hist.ReadTimeout(),
		MaxPending:  maxPending,
		Debug:       cfg.Debug(),
	})

	sessions := ws.NewRegistry()
	wss := ws.NewServer(cfg, engine, conns, sessions)
	checks := []health.Check{{Name: "history:" + cfg.History.Backend, Pinger: hist, Queue: hist}}
	h := api.NewHandlers(cfg, hist, wss.HandleWS, checks...)

	// Host only names the server in logs; it listens on every interface.
	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				conns.Prune()
			}
		}
	}()

	if cfg.Server.GRPCHealthPort != "" {
		gs, hs := health.NewGRPCServer()
		l, err := net.Listen("tcp", ":"+cfg.Server.GRPCHealthPort)
		if err != nil {
			log.Fatalf("grpc health listen: %v", err)
		}
		go health.Watch(ctx, hs, 10*time.Second, checks...)
		go func() {
			log.Printf("grpc health listening on %s", l.Addr())
			if err := gs.Serve(l); err != nil {
				log.Printf("grpc health serve: %v", err)
			}
		}()
		defer gs.GracefulStop()
	}

	if cfg.MDNS.Enabled {
		port, err := strconv.Atoi(cfg.Server.Port)
		if err != nil {
			log.Printf("[mdns] bad port %q: %v", cfg.Server.Port, err)
		} else if md, err := discovery.Advertise(cfg.MDNS.Instance, port); err != nil {
			log.Printf("[mdns] advertise: %v", err)
		} else {
			log.Printf("[mdns] advertising %s on port %d", discovery.ServiceType, port)
			defer md.Shutdown()
		}
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		stop()
		sessions.CloseAll("server shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Printf("server ready on http://%s:%s (history=%s, draw limit %d per %s)",
		cfg.Server.Host, cfg.Server.Port, cfg.History.Backend, cfg.RateLimit.DrawPerWindow, cfg.RateLimit.Window)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}

	// Strokes accepted before shutdown still reach the backend.
	dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	closeHistory(dctx, hist, backend)
	log.Printf("server stopped")
}

// closeHistory drains hist. A clean drain closes the backend itself, so the
// backend is only closed here when the drain gave up.
func closeHistory(ctx context.Context, hist *store.History, backend store.Backend) {
	if err := hist.Close(ctx); err != nil {
		log.Printf("[store] drain: %v", err)
		if err := backend.Close(); err != nil {
			log.Printf("[store] close: %v", err)
		}
	}
}
