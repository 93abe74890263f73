package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outbox item statuses. Transitions are monotonic:
// pending → in_flight → {sent | failed}, with in_flight → pending only via
// the bounded retry path.
const (
	OutboxPending  = "pending"
	OutboxInFlight = "in_flight"
	OutboxSent     = "sent"
	OutboxFailed   = "failed"
)

// OutboxItem is one unit of outbound work. Rows in this table are the only
// coordination channel between the bridge and any other process.
type OutboxItem struct {
	ID             int64
	IdempotencyKey string
	Dest           string
	Channel        int
	Text           string
	Status         string
	Attempts       int
	Error          string
	CreatedAt      time.Time
	ClaimedAt      time.Time
	CompletedAt    time.Time
}

// EnqueueOutbox queues one send request. An empty idempotency key gets a
// generated one. If an item with the same key is still pending or
// in-flight, ErrDuplicateWork is returned and no row is written — callers
// may treat that as success, the original request is already queued.
func (s *Store) EnqueueOutbox(text, dest string, channel int, idempotencyKey string) (*OutboxItem, error) {
	if text == "" {
		return nil, errors.New("store: empty outbox text")
	}
	if dest == "" {
		dest = "^all"
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	item := &OutboxItem{
		IdempotencyKey: idempotencyKey,
		Dest:           dest,
		Channel:        channel,
		Text:           text,
		Status:         OutboxPending,
	}
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO outbox (idempotency_key, dest, channel, text, status)
			VALUES (?, ?, ?, ?, ?)`,
			idempotencyKey, dest, channel, text, OutboxPending)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: key %s", ErrDuplicateWork, idempotencyKey)
			}
			return err
		}
		item.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	item.CreatedAt = time.Now()
	return item, nil
}

// ClaimNextOutbox atomically selects the oldest pending item and marks it
// in-flight. Returns (nil, nil) when nothing is pending. The claim happens
// in a single statement, so two concurrent pollers can never claim the
// same row.
func (s *Store) ClaimNextOutbox() (*OutboxItem, error) {
	item := &OutboxItem{}
	var claimed sql.NullTime
	err := s.db.QueryRow(`
		UPDATE outbox SET status = ?, claimed_at = ?
		WHERE id = (SELECT id FROM outbox WHERE status = ? ORDER BY created_at, id LIMIT 1)
			AND status = ?
		RETURNING id, idempotency_key, dest, channel, text, status, attempts, error, created_at, claimed_at`,
		OutboxInFlight, time.Now().UTC(), OutboxPending, OutboxPending).
		Scan(&item.ID, &item.IdempotencyKey, &item.Dest, &item.Channel, &item.Text, &item.Status, &item.Attempts, &item.Error, &item.CreatedAt, &claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item.ClaimedAt = claimed.Time
	return item, nil
}

// CompleteOutbox finishes a claimed item as sent or terminally failed. The
// guard on in_flight keeps the transition monotonic: finished items never
// regress.
func (s *Store) CompleteOutbox(id int64, status, errText string) error {
	if status != OutboxSent && status != OutboxFailed {
		return fmt.Errorf("store: invalid outbox outcome %q", status)
	}
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE outbox SET status = ?, error = ?, completed_at = ?
			WHERE id = ? AND status = ?`,
			status, errText, time.Now().UTC(), id, OutboxInFlight)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("store: outbox item %d not in flight", id)
		}
		return nil
	})
}

// ReleaseOutbox returns a claimed item to pending for a later retry,
// counting the attempt.
func (s *Store) ReleaseOutbox(id int64, errText string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE outbox SET status = ?, attempts = attempts + 1, error = ?, claimed_at = NULL
			WHERE id = ? AND status = ?`,
			OutboxPending, errText, id, OutboxInFlight)
		return err
	})
}

// ReclaimStaleOutbox re-pends in-flight items claimed before the cutoff.
// Run at process start to recover the at-most-one item an unclean shutdown
// can leave behind.
func (s *Store) ReclaimStaleOutbox(olderThan time.Duration) (int64, error) {
	var n int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE outbox SET status = ?, claimed_at = NULL
			WHERE status = ? AND claimed_at < ?`,
			OutboxPending, OutboxInFlight, time.Now().Add(-olderThan).UTC())
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// GetOutboxItem fetches one item by id.
func (s *Store) GetOutboxItem(id int64) (*OutboxItem, error) {
	item := &OutboxItem{}
	var claimed, completed sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, idempotency_key, dest, channel, text, status, attempts, error, created_at, claimed_at, completed_at
		FROM outbox WHERE id = ?`, id).
		Scan(&item.ID, &item.IdempotencyKey, &item.Dest, &item.Channel, &item.Text, &item.Status, &item.Attempts, &item.Error, &item.CreatedAt, &claimed, &completed)
	if err != nil {
		return nil, err
	}
	item.ClaimedAt = claimed.Time
	item.CompletedAt = completed.Time
	return item, nil
}

// ListOutbox returns the newest items, optionally restricted to a status.
func (s *Store) ListOutbox(status string, limit int) ([]OutboxItem, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, idempotency_key, dest, channel, text, status, attempts, error, created_at, claimed_at, completed_at FROM outbox`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxItem
	for rows.Next() {
		var item OutboxItem
		var claimed, completed sql.NullTime
		if err := rows.Scan(&item.ID, &item.IdempotencyKey, &item.Dest, &item.Channel, &item.Text, &item.Status, &item.Attempts, &item.Error, &item.CreatedAt, &claimed, &completed); err != nil {
			return nil, err
		}
		item.ClaimedAt = claimed.Time
		item.CompletedAt = completed.Time
		out = append(out, item)
	}
	return out, rows.Err()
}
