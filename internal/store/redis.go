package store

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-redis/redis/v8"

	"sketchsync/server/internal/types"
)

// RedisBackend stores each room as a list at room:<id>, one JSON stroke per element.
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend parses a redis:// or rediss:// URL. The client connects
// lazily, so an unreachable server does not fail construction.
func NewRedisBackend(url string, tlsInsecure bool) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	if opts.TLSConfig != nil && tlsInsecure {
		opts.TLSConfig = &tls.Config{ServerName: opts.TLSConfig.ServerName, InsecureSkipVerify: true}
	}
	return &RedisBackend{rdb: redis.NewClient(opts)}, nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func roomKey(roomID string) string { return "room:" + roomID }

func (r *RedisBackend) Append(ctx context.Context, roomID string, strokes []types.Stroke) error {
	if len(strokes) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(strokes))
	for _, s := range strokes {
		v, err := encodeStroke(s)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	return r.rdb.RPush(ctx, roomKey(roomID), vals...).Err()
}

func (r *RedisBackend) Range(ctx context.Context, roomID string) ([]types.Stroke, error) {
	rows, err := r.rdb.LRange(ctx, roomKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeStrokes(roomID, rows), nil
}

func (r *RedisBackend) Delete(ctx context.Context, roomID string) error {
	return r.rdb.Del(ctx, roomKey(roomID)).Err()
}

func (r *RedisBackend) Trim(ctx context.Context, roomID string, keep int) error {
	if keep <= 0 {
		return r.Delete(ctx, roomID)
	}
	return r.rdb.LTrim(ctx, roomKey(roomID), int64(-keep), -1).Err()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisBackend) Close() error { return r.rdb.Close() }
