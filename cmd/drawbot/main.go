package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sketchsync/server/internal/batch"
	"sketchsync/server/internal/discovery"
	"sketchsync/server/internal/types"
	"sketchsync/server/internal/wire"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "relay WebSocket URL")
	room := flag.String("room", "drawbot-"+time.Now().Format("150405"), "room to draw in")
	strokes := flag.Int("strokes", 200, "segments to draw")
	interval := flag.Duration("interval", batch.DefaultInterval, "batch flush interval")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	discover := flag.Bool("discover", false, "find the relay over mDNS instead of -url")
	color := flag.String("color", "#e03131", "stroke color")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := *url
	if *discover {
		dctx, dcancel := context.WithTimeout(ctx, 3*time.Second)
		addr, err := discovery.Browse(dctx)
		dcancel()
		if err != nil {
			log.Fatalf("discover relay: %v", err)
		}
		target = "ws://" + addr + "/ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", target, err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(typ string, data any) error {
		b, err := json.Marshal(map[string]any{"type": typ, "data": data})
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, b)
	}

	var countsMu sync.Mutex
	counts := map[string]int{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env wire.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				fmt.Printf("[recv] unparseable frame: %v\n", err)
				continue
			}
			countsMu.Lock()
			counts[env.Type]++
			countsMu.Unlock()
			if env.Type == wire.TypeCanvasHistory {
				var hist []types.Stroke
				_ = json.Unmarshal(env.Data, &hist)
				fmt.Printf("[recv] canvas-history with %d strokes\n", len(hist))
			}
		}
	}()

	fmt.Printf("=== drawbot ===\n")
	fmt.Printf("Relay: %s\nRoom: %s\n\n", target, *room)
	if err := send(wire.TypeJoinRoom, *room); err != nil {
		log.Fatalf("join: %v", err)
	}

	sent := 0
	sched := batch.New(*interval, func(roomID string, s []types.Stroke) error {
		if err := send(wire.TypeDrawBatch, map[string]any{"roomId": roomID, "batch": s}); err != nil {
			return err
		}
		sent++
		return nil
	})
	runCtx, stopRun := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- sched.Run(runCtx) }()

	// Points arrive faster than the flush interval, like a pointer drag.
	step := *interval / 4
	for _, st := range spiral(*strokes, 400, 300, *color, 3) {
		sched.Add(*room, st)
		_ = send(wire.TypeMouseMove, map[string]any{"roomId": *room, "x": st.CurrentPoint.X, "y": st.CurrentPoint.Y})
		select {
		case <-ctx.Done():
		case <-time.After(step):
		}
		if ctx.Err() != nil {
			break
		}
	}
	stopRun()
	if err := <-runDone; err != nil {
		log.Printf("final flush: %v", err)
	}
	fmt.Printf("[send] %d segments in %d draw-batch frames\n", *strokes, sent)

	// Give peers' traffic a moment to arrive before summarising.
	time.Sleep(500 * time.Millisecond)
	writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(time.Second))
	writeMu.Unlock()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	countsMu.Lock()
	defer countsMu.Unlock()
	kinds := make([]string, 0, len(counts))
	for t := range counts {
		kinds = append(kinds, t)
	}
	sort.Strings(kinds)
	fmt.Println("\n=== received ===")
	for _, t := range kinds {
		fmt.Printf("  %-15s %d\n", t, counts[t])
	}
}
