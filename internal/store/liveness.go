package store

import (
	"database/sql"
	"errors"
	"time"
)

// The liveness marker is a single db_meta row bumped by every write
// transaction that changes user-visible data. Polling readers compare
// tokens instead of re-scanning tables.

const livenessKey = "last_updated"

func touchLivenessTx(tx *sql.Tx) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO db_meta (key, value) VALUES (?, ?)`,
		livenessKey, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// TouchLiveness bumps the marker outside of any other write.
func (s *Store) TouchLiveness() error {
	return s.withTx(func(tx *sql.Tx) error { return nil })
}

// LivenessToken returns an opaque token for the current marker state.
// A store that has never been written reports an empty token.
func (s *Store) LivenessToken() (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM db_meta WHERE key = ?`, livenessKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// ChangedSince reports whether anything was written after the given token
// was taken, and returns the fresh token.
func (s *Store) ChangedSince(token string) (bool, string, error) {
	current, err := s.LivenessToken()
	if err != nil {
		return false, token, err
	}
	return current != token, current, nil
}
