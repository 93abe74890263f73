package store

import (
	"database/sql"
	"time"
)

// SaveUserFact attaches a memory snippet to a sender identity.
func (s *Store) SaveUserFact(userID, fact string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO user_facts (user_id, fact) VALUES (?, ?)`, userID, fact)
		return err
	})
}

// UserFacts returns the facts recorded for one sender, oldest first.
func (s *Store) UserFacts(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT fact FROM user_facts WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFacts(rows)
}

// SaveGlobalFact records a memory snippet attached to no one.
func (s *Store) SaveGlobalFact(fact string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO global_facts (fact) VALUES (?)`, fact)
		return err
	})
}

// GlobalFacts returns all global facts, oldest first.
func (s *Store) GlobalFacts() ([]string, error) {
	rows, err := s.db.Query(`SELECT fact FROM global_facts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFacts(rows)
}

func scanFacts(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FilteredEvent is the audit record of a message the safety gate rejected.
type FilteredEvent struct {
	ID        int64
	SenderID  string
	Text      string
	Rule      string
	CreatedAt time.Time
}

// RecordFiltered writes one audit row for a rejected message.
func (s *Store) RecordFiltered(senderID, text, rule string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO filtered_content (sender_id, text, rule) VALUES (?, ?, ?)`, senderID, text, rule)
		return err
	})
}

// ListFiltered returns the newest audit rows.
func (s *Store) ListFiltered(limit int) ([]FilteredEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, sender_id, text, rule, created_at FROM filtered_content ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FilteredEvent
	for rows.Next() {
		var f FilteredEvent
		if err := rows.Scan(&f.ID, &f.SenderID, &f.Text, &f.Rule, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
