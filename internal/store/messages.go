package store

import (
	"database/sql"
	"time"
)

// Message directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Message is one text exchange, immutable after creation. Ordering within
// one sender follows the arrival order of the underlying raw events.
type Message struct {
	ID         int64
	Direction  string
	SenderID   string
	SenderName string
	Channel    int
	Text       string
	RawEventID int64 // 0 when the message has no source event (outbound)
	CreatedAt  time.Time
}

// RecordMessage persists one conversation message.
func (s *Store) RecordMessage(m *Message) (int64, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	var rawID any
	if m.RawEventID != 0 {
		rawID = m.RawEventID
	}
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO messages (direction, sender_id, sender_name, channel, text, raw_event_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.Direction, m.SenderID, m.SenderName, m.Channel, m.Text, rawID, m.CreatedAt.UTC())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ConversationHistory returns the last `limit` messages exchanged with one
// sender, oldest first, ready for prompt assembly.
func (s *Store) ConversationHistory(senderID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, direction, sender_id, sender_name, channel, text, COALESCE(raw_event_id, 0), created_at
		FROM (
			SELECT * FROM messages WHERE sender_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, senderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the newest messages across all senders.
func (s *Store) RecentMessages(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, direction, sender_id, sender_name, channel, text, COALESCE(raw_event_id, 0), created_at
		FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessageCount returns how many messages are recorded, optionally for one
// sender.
func (s *Store) MessageCount(senderID string) (int64, error) {
	var n int64
	var err error
	if senderID == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE sender_id = ?`, senderID).Scan(&n)
	}
	return n, err
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Direction, &m.SenderID, &m.SenderName, &m.Channel, &m.Text, &m.RawEventID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
