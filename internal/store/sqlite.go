package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"sketchsync/server/internal/types"
)

// SQLiteBackend keeps every room in one table ordered by its autoincrement id.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	b := &SQLiteBackend{db: db}
	if err := b.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS strokes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id VARCHAR(99) NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_strokes_room_id ON strokes(room_id, id);
	`
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Append(ctx context.Context, roomID string, strokes []types.Stroke) error {
	if len(strokes) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO strokes (room_id, payload) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, s := range strokes {
		v, err := encodeStroke(s)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, roomID, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Range(ctx context.Context, roomID string) ([]types.Stroke, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT payload FROM strokes WHERE room_id = ? ORDER BY id", roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var raw []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		raw = append(raw, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decodeStrokes(roomID, raw), nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, roomID string) error {
	_, err := b.db.ExecContext(ctx, "DELETE FROM strokes WHERE room_id = ?", roomID)
	return err
}

func (b *SQLiteBackend) Trim(ctx context.Context, roomID string, keep int) error {
	if keep <= 0 {
		return b.Delete(ctx, roomID)
	}
	_, err := b.db.ExecContext(ctx, `
		DELETE FROM strokes WHERE room_id = ? AND id NOT IN (
			SELECT id FROM strokes WHERE room_id = ? ORDER BY id DESC LIMIT ?
		)`, roomID, roomID, keep)
	return err
}

func (b *SQLiteBackend) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

func (b *SQLiteBackend) Close() error { return b.db.Close() }
