// Package storage – sqlite.go implements the Store interface on a
// SQLite database. One row per session; writes are upserts so a
// checkpoint simply overwrites the previous snapshot.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createCheckpointsTable = `
CREATE TABLE IF NOT EXISTS state_checkpoints (
	session_id TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStore persists state snapshots in a state_checkpoints table.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteStore opens or creates the checkpoint database at path.
// ":memory:" gives an ephemeral database for tests.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "./data/aughie.db"
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(createCheckpointsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state_checkpoints table: %w", err)
	}

	logger.Info("state checkpoint store opened", "path", path)
	return &SQLiteStore{db: db, logger: logger.With("component", "storage")}, nil
}

// Write upserts every entry in one transaction.
func (s *SQLiteStore) Write(entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin checkpoint write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO state_checkpoints (session_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare checkpoint upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for key, value := range entries {
		if _, err := stmt.Exec(key, value, now); err != nil {
			return fmt.Errorf("write checkpoint %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint write: %w", err)
	}
	s.logger.Debug("checkpoints written", "count", len(entries))
	return nil
}

// Read fetches the snapshots for the requested keys. Unknown keys are
// omitted from the result, not errors.
func (s *SQLiteStore) Read(keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.Query(
		"SELECT session_id, state FROM state_checkpoints WHERE session_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("read checkpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Sessions lists every session id with a stored checkpoint.
func (s *SQLiteStore) Sessions() ([]string, error) {
	rows, err := s.db.Query("SELECT session_id FROM state_checkpoints ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a session's checkpoint. Deleting an absent session is
// not an error.
func (s *SQLiteStore) Delete(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM state_checkpoints WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
