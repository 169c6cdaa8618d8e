package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"sketchsync/server/internal/config"
	"sketchsync/server/internal/types"
)

// Backend is a durable ordered list of strokes per room.
type Backend interface {
	Append(ctx context.Context, roomID string, strokes []types.Stroke) error
	Range(ctx context.Context, roomID string) ([]types.Stroke, error)
	Delete(ctx context.Context, roomID string) error
	// Trim keeps only the newest keep entries of a room.
	Trim(ctx context.Context, roomID string, keep int) error
	Ping(ctx context.Context) error
	Close() error
}

// OpenBackend builds the backend named by HISTORY_BACKEND.
func OpenBackend(cfg config.Config) (Backend, error) {
	switch strings.ToLower(cfg.History.Backend) {
	case "redis", "":
		return NewRedisBackend(cfg.Redis.URL, cfg.Redis.TLSInsecure)
	case "sqlite":
		return NewSQLiteBackend(cfg.History.SQLitePath)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}

func encodeStroke(s types.Stroke) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeStrokes skips entries that no longer parse rather than losing the room.
func decodeStrokes(roomID string, rows []string) []types.Stroke {
	out := make([]types.Stroke, 0, len(rows))
	for i, r := range rows {
		var s types.Stroke
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			log.Printf("[store] skip corrupt entry room=%s idx=%d: %v", roomID, i, err)
			metricCorrupt.Inc()
			continue
		}
		out = append(out, s)
	}
	return out
}
