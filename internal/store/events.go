package store

import (
	"database/sql"
	"time"
)

// RawEvent is the immutable record of one transport-level occurrence.
// Rows are append-only: no operation in this package updates or deletes
// them.
type RawEvent struct {
	ID       int64
	Kind     string
	FromID   string
	ToID     string
	Channel  int
	RxTime   time.Time
	SNR      float64
	RSSI     int
	HopLimit int
	HopStart int
	Payload  string // kind-specific fields, JSON
}

// AppendRawEvent appends one event and returns its id.
func (s *Store) AppendRawEvent(ev *RawEvent) (int64, error) {
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO raw_events (kind, from_id, to_id, channel, rx_time, snr, rssi, hop_limit, hop_start, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.Kind, ev.FromID, ev.ToID, ev.Channel, ev.RxTime.UTC(), ev.SNR, ev.RSSI, ev.HopLimit, ev.HopStart, ev.Payload)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// GetRawEvent fetches one event by id.
func (s *Store) GetRawEvent(id int64) (*RawEvent, error) {
	ev := &RawEvent{}
	err := s.db.QueryRow(`
		SELECT id, kind, from_id, to_id, channel, rx_time, snr, rssi, hop_limit, hop_start, payload
		FROM raw_events WHERE id = ?`, id).
		Scan(&ev.ID, &ev.Kind, &ev.FromID, &ev.ToID, &ev.Channel, &ev.RxTime, &ev.SNR, &ev.RSSI, &ev.HopLimit, &ev.HopStart, &ev.Payload)
	if err != nil {
		return nil, err
	}
	ev.RxTime = ev.RxTime.UTC()
	return ev, nil
}

// ListRawEvents returns the newest events, optionally restricted to a kind.
func (s *Store) ListRawEvents(kind string, limit int) ([]RawEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, kind, from_id, to_id, channel, rx_time, snr, rssi, hop_limit, hop_start, payload
		FROM raw_events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawEvent
	for rows.Next() {
		var ev RawEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.FromID, &ev.ToID, &ev.Channel, &ev.RxTime, &ev.SNR, &ev.RSSI, &ev.HopLimit, &ev.HopStart, &ev.Payload); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RawEventCount returns the total number of appended events.
func (s *Store) RawEventCount() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM raw_events`).Scan(&n)
	return n, err
}
