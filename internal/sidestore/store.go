// Package sidestore provides a local SQLite-backed side cache for data that
// does not belong in the time-series store: upstream bearer tokens and CSV
// ETL bookkeeping. It is a generalization of the teacher's clientdata
// cache table, with the per-domain table split collapsed into a single
// scoped key/value schema.
package sidestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection holding scoped, TTL-bearing entries.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the side-store database at path, creating its
// parent directory and schema if necessary.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sidestore path: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", absPath))
	if err != nil {
		return nil, fmt.Errorf("open sidestore: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS side_entries (
			scope      TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (scope, key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sidestore schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores value (JSON-encoded) under scope/key with expiration now+ttl.
func (s *Store) Put(scope, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal sidestore value: %w", err)
	}
	expiresAt := time.Now().Add(ttl).Unix()
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO side_entries (scope, key, data, expires_at) VALUES (?, ?, ?, ?)`,
		scope, key, string(data), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("store sidestore entry %s/%s: %w", scope, key, err)
	}
	return nil
}

// GetIfFresh decodes the entry at scope/key into out, returning found=false
// if it is absent or expired.
func (s *Store) GetIfFresh(scope, key string, out interface{}) (found bool, err error) {
	var data string
	err = s.db.QueryRow(
		`SELECT data FROM side_entries WHERE scope = ? AND key = ? AND expires_at > ?`,
		scope, key, time.Now().Unix(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sidestore entry %s/%s: %w", scope, key, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("decode sidestore entry %s/%s: %w", scope, key, err)
	}
	return true, nil
}

// Delete removes the entry at scope/key, if any.
func (s *Store) Delete(scope, key string) error {
	_, err := s.db.Exec(`DELETE FROM side_entries WHERE scope = ? AND key = ?`, scope, key)
	if err != nil {
		return fmt.Errorf("delete sidestore entry %s/%s: %w", scope, key, err)
	}
	return nil
}

// DeleteExpired removes every expired entry and returns the count removed.
func (s *Store) DeleteExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM side_entries WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sidestore entries: %w", err)
	}
	return res.RowsAffected()
}
