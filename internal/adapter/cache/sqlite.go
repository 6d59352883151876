// Package cache provides the on-disk byte cache backing repeated runs: one
// sqlite table keyed by source URL, so a re-run of the same month touches
// the network only for what it has never seen.
package cache

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed byte cache. Safe for concurrent use; database/sql
// serializes access to the single connection sqlite allows for writes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_cache (
	key       TEXT PRIMARY KEY,
	body      BLOB NOT NULL,
	stored_at DATETIME NOT NULL
);
`

// Open creates or opens the cache database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	logger.Debug("byte cache opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Get returns the cached body for key, or ok=false on a miss. Read errors
// degrade to a miss: the cache must never take the fetch down with it.
func (s *Store) Get(key string) ([]byte, bool) {
	var body []byte
	err := s.db.QueryRow("SELECT body FROM fetch_cache WHERE key = ?", key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return body, true
}

// Put stores a body under key, replacing any previous entry.
func (s *Store) Put(key string, body []byte) error {
	_, err := s.db.Exec(
		"INSERT INTO fetch_cache (key, body, stored_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET body = excluded.body, stored_at = excluded.stored_at",
		key, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
