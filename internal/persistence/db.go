// Package persistence stores the game as a versioned blob in SQLite and
// reads and writes compressed snapshot files.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/khalecl/supply-chain-idle/internal/engine"
)

// ErrNoSave is returned by LoadGame when the slot is empty.
var ErrNoSave = errors.New("no saved game")

// DB wraps a SQLite connection holding the save slots.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		key TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		blob TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS save_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		game_time_ms REAL NOT NULL,
		money REAL NOT NULL,
		prestige INTEGER NOT NULL,
		saved_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_save_history_key ON save_history(key, id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRecord is one row of the save slot table.
type SaveRecord struct {
	Key     string `db:"key"`
	Version int    `db:"version"`
	Blob    string `db:"blob"`
	SavedAt int64  `db:"saved_at"`
}

// HistoryEntry summarizes one past save.
type HistoryEntry struct {
	ID         int64   `db:"id" json:"id"`
	GameTimeMS float64 `db:"game_time_ms" json:"gameTimeMs"`
	Money      float64 `db:"money" json:"money"`
	Prestige   int     `db:"prestige" json:"prestige"`
	SavedAt    int64   `db:"saved_at" json:"savedAt"`
}

// SaveGame writes the snapshot to the store key, replacing any earlier save.
func (db *DB) SaveGame(ctx context.Context, s engine.Snapshot) error {
	blob, err := Encode(s)
	if err != nil {
		return err
	}
	now := time.Now().Unix()

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO saves (key, version, blob, saved_at) VALUES (?, ?, ?, ?)",
		StoreKey, CurrentVersion, string(blob), now,
	); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO save_history (key, game_time_ms, money, prestige, saved_at) VALUES (?, ?, ?, ?, ?)",
		StoreKey, ms(s.GameTime), s.Money, s.PrestigeLevel, now,
	); err != nil {
		return fmt.Errorf("write save history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Debug("game saved", "bytes", len(blob), "game_time", s.GameTime)
	return nil
}

// LoadGame reads and migrates the saved game. It returns ErrNoSave when
// nothing has been saved yet.
func (db *DB) LoadGame(ctx context.Context) (engine.Snapshot, error) {
	rec, err := db.Record(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	s, err := Decode([]byte(rec.Blob))
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("load %s: %w", rec.Key, err)
	}
	return s, nil
}

// Record returns the raw save row.
func (db *DB) Record(ctx context.Context) (SaveRecord, error) {
	var rec SaveRecord
	err := db.conn.GetContext(ctx, &rec,
		"SELECT key, version, blob, saved_at FROM saves WHERE key = ?", StoreKey)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRecord{}, ErrNoSave
	}
	if err != nil {
		return SaveRecord{}, fmt.Errorf("read save: %w", err)
	}
	return rec, nil
}

// PutRaw stores a blob exactly as given. It is used to import saves
// written by older versions.
func (db *DB) PutRaw(ctx context.Context, version int, blob []byte) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO saves (key, version, blob, saved_at) VALUES (?, ?, ?, ?)",
		StoreKey, version, string(blob), time.Now().Unix(),
	)
	return err
}

// HasSave reports whether the slot holds a save.
func (db *DB) HasSave(ctx context.Context) (bool, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM saves WHERE key = ?", StoreKey); err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteSave clears the slot.
func (db *DB) DeleteSave(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM saves WHERE key = ?", StoreKey)
	return err
}

// History returns the most recent N save summaries, newest first.
func (db *DB) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := db.conn.SelectContext(ctx, &entries,
		"SELECT id, game_time_ms, money, prestige, saved_at FROM save_history WHERE key = ? ORDER BY id DESC LIMIT ?",
		StoreKey, limit,
	)
	return entries, err
}
