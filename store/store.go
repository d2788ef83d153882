// Package store persists named wisp programs in a SQLite database.
// The REPL's :save and :load commands are its main client.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested program doesn't exist.
var ErrNotFound = errors.New("program not found")

// Store handles SQLite storage for named programs.
type Store struct {
	db  *sql.DB
	log commonlog.Logger
	mu  sync.Mutex
}

// Open opens (creating if needed) a program store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		name       TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{
		db:  db,
		log: commonlog.GetLogger("wisp.store"),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists a program under name, replacing any previous version.
func (s *Store) Save(name, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO programs (name, source, updated_at) VALUES (?, ?, ?)",
		name, source, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving program %s: %w", name, err)
	}
	s.log.Debugf("saved program %s (%d bytes)", name, len(source))
	return nil
}

// Load retrieves the source of a named program.
func (s *Store) Load(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var source string
	err := s.db.QueryRow("SELECT source FROM programs WHERE name = ?", name).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading program %s: %w", name, err)
	}
	return source, nil
}

// List returns the names of all stored programs, sorted.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name FROM programs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("listing programs: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a stored program. Deleting a missing name reports
// ErrNotFound.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM programs WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting program %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting program %s: %w", name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
