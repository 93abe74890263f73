// Package store implements the shared event store: a single sqlite file
// (plus WAL segment) holding raw events, derived entities, memory facts,
// the outbox command bus, and the liveness marker. Both the bridge and the
// monitor process open the same file; all coordination between them goes
// through this package.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store errors.
var (
	// ErrUnsupportedSchema is returned by Open when the file was written by
	// a newer release.
	ErrUnsupportedSchema = errors.New("store: schema version newer than supported")
	// ErrDuplicateWork is returned by EnqueueOutbox when a live item with
	// the same idempotency key already exists.
	ErrDuplicateWork = errors.New("store: duplicate outbox work")
)

// busyRetries bounds internal retries on transient lock contention.
const busyRetries = 5

// Store wraps the sqlite database shared by both processes.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the store at path and brings the schema up to
// CurrentSchemaVersion. Every pending migration runs in its own
// transaction; a failed step aborts the open and leaves the prior version
// intact. Opening a file from a newer release fails with
// ErrUnsupportedSchema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	current, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if current > CurrentSchemaVersion {
		return fmt.Errorf("%w: file=%d supported=%d", ErrUnsupportedSchema, current, CurrentSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
		slog.Info("Store migrated", "version", m.version)
	}
	return nil
}

// schemaVersion reads the recorded version; a fresh file reports 0.
func (s *Store) schemaVersion() (int, error) {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("schema_version table: %w", err)
	}
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion() (int, error) {
	return s.schemaVersion()
}

// withTx runs fn in a write transaction and bumps the liveness marker in
// the same transaction, retrying bounded times on lock contention.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		err = s.tryTx(fn)
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

func (s *Store) tryTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := touchLivenessTx(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
