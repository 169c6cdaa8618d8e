package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sketchsync/server/internal/config"
	"sketchsync/server/internal/health"
	"sketchsync/server/internal/types"
	"sketchsync/server/internal/validate"
)

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	Read(ctx context.Context, roomID string) []types.Stroke
}

type Handlers struct {
	cfg     config.Config
	history HistoryReader
	checks  []health.Check
	ws      http.HandlerFunc
}

func NewHandlers(cfg config.Config, hist HistoryReader, ws http.HandlerFunc, checks ...health.Check) *Handlers {
	return &Handlers{cfg: cfg, history: hist, ws: ws, checks: checks}
}

func (h *Handlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleReady reports dependency health; 503 when any check fails.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := health.CheckAll(ctx, h.checks...)
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// HandleHistory returns a room's strokes in append order. An unknown room or
// an unavailable store yields an empty array.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if !validate.RoomID(roomID) {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	strokes := h.history.Read(r.Context(), roomID)
	if strokes == nil {
		strokes = []types.Stroke{}
	}
	writeJSON(w, http.StatusOK, strokes)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
