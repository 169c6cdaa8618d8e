package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sketchsync/server/internal/config"
	"sketchsync/server/internal/health"
	"sketchsync/server/internal/store"
	"sketchsync/server/internal/types"
)

func newTestServer(t *testing.T, origins []string) (*httptest.Server, *store.MemoryBackend, *store.History) {
	t.Helper()
	var cfg config.Config
	cfg.Server.AllowedOrigins = origins
	b := store.NewMemoryBackend()
	hist := store.NewHistory(b, store.Options{Workers: 2, QueueSize: 64, ReadTimeout: time.Second})
	t.Cleanup(func() { _ = hist.Close(context.Background()) })
	h := NewHandlers(cfg, hist, nil, health.Check{Name: "history", Pinger: hist, Queue: hist})
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, b, hist
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, []string{"*"})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.StatusCode, body)
	}
}

func TestReadyzReflectsBackend(t *testing.T) {
	srv, b, _ := newTestServer(t, []string{"*"})
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	b.FailWith(errors.New("down"))
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var st health.Report
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Ready || len(st.Backends) != 1 || st.Backends[0].Backend != "history" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestRoomHistory(t *testing.T) {
	srv, _, hist := newTestServer(t, []string{"*"})
	hist.Append("room1", types.Stroke{CurrentPoint: types.Point{X: 1, Y: 2}, Color: "#000000"})
	hist.Append("room1", types.Stroke{CurrentPoint: types.Point{X: 3, Y: 4}, Color: "#ffffff"})

	resp, err := http.Get(srv.URL + "/rooms/room1/history")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var got []types.Stroke
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[1].CurrentPoint.X != 3 {
		t.Fatalf("unexpected history %+v", got)
	}

	resp2, err := http.Get(srv.URL + "/rooms/empty/history")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	if string(body) != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestRoomHistoryInvalidID(t *testing.T) {
	srv, _, _ := newTestServer(t, []string{"*"})
	resp, err := http.Get(srv.URL + "/rooms/bad%20room/history")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _, _ := newTestServer(t, []string{"*"})
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCORS(t *testing.T) {
	srv, _, _ := newTestServer(t, []string{"https://draw.example.com"})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/rooms/room1/history", nil)
	req.Header.Set("Origin", "https://draw.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://draw.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin must not be allowed, got %q", got)
	}
}
