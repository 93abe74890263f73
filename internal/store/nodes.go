package store

import (
	"database/sql"
	"time"
)

// Node is the mutable snapshot of a known network participant. Identity is
// the natural key; rows are only ever superseded, never deleted.
type Node struct {
	ID           string
	LongName     string
	ShortName    string
	HwModel      string
	LastHeard    time.Time
	HopsAway     int
	SNR          float64
	BatteryLevel int
	Latitude     float64
	Longitude    float64
	TimesHeard   int
	FirstSeen    time.Time
}

// UpsertNode inserts or refreshes a node snapshot. Empty incoming fields
// keep the stored value so partial updates (e.g. a telemetry packet with no
// names) don't erase what earlier packets established.
func (s *Store) UpsertNode(n *Node) error {
	if n.LastHeard.IsZero() {
		n.LastHeard = time.Now()
	}
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO nodes (id, long_name, short_name, hw_model, last_heard, hops_away, snr, battery_level, latitude, longitude, times_heard)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(id) DO UPDATE SET
				long_name = CASE WHEN excluded.long_name != '' THEN excluded.long_name ELSE nodes.long_name END,
				short_name = CASE WHEN excluded.short_name != '' THEN excluded.short_name ELSE nodes.short_name END,
				hw_model = CASE WHEN excluded.hw_model != '' THEN excluded.hw_model ELSE nodes.hw_model END,
				last_heard = excluded.last_heard,
				hops_away = excluded.hops_away,
				snr = CASE WHEN excluded.snr != 0 THEN excluded.snr ELSE nodes.snr END,
				battery_level = CASE WHEN excluded.battery_level != 0 THEN excluded.battery_level ELSE nodes.battery_level END,
				latitude = CASE WHEN excluded.latitude != 0 THEN excluded.latitude ELSE nodes.latitude END,
				longitude = CASE WHEN excluded.longitude != 0 THEN excluded.longitude ELSE nodes.longitude END,
				times_heard = nodes.times_heard + 1`,
			n.ID, n.LongName, n.ShortName, n.HwModel, n.LastHeard.UTC(), n.HopsAway, n.SNR, n.BatteryLevel, n.Latitude, n.Longitude)
		return err
	})
}

// TouchNodeLastHeard refreshes last_heard without changing the snapshot.
func (s *Store) TouchNodeLastHeard(nodeID string, at time.Time) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE nodes SET last_heard = ?, times_heard = times_heard + 1 WHERE id = ?`, at.UTC(), nodeID)
		return err
	})
}

// GetNode fetches one node; returns (nil, nil) when unknown.
func (s *Store) GetNode(id string) (*Node, error) {
	n := &Node{}
	var lastHeard, firstSeen sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, long_name, short_name, hw_model, last_heard, hops_away, snr, battery_level, latitude, longitude, times_heard, first_seen
		FROM nodes WHERE id = ?`, id).
		Scan(&n.ID, &n.LongName, &n.ShortName, &n.HwModel, &lastHeard, &n.HopsAway, &n.SNR, &n.BatteryLevel, &n.Latitude, &n.Longitude, &n.TimesHeard, &firstSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.LastHeard = lastHeard.Time
	n.FirstSeen = firstSeen.Time
	return n, nil
}

// ListNodes returns all known nodes, most recently heard first.
func (s *Store) ListNodes() ([]Node, error) {
	rows, err := s.db.Query(`
		SELECT id, long_name, short_name, hw_model, last_heard, hops_away, snr, battery_level, latitude, longitude, times_heard, first_seen
		FROM nodes ORDER BY last_heard DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		var lastHeard, firstSeen sql.NullTime
		if err := rows.Scan(&n.ID, &n.LongName, &n.ShortName, &n.HwModel, &lastHeard, &n.HopsAway, &n.SNR, &n.BatteryLevel, &n.Latitude, &n.Longitude, &n.TimesHeard, &firstSeen); err != nil {
			return nil, err
		}
		n.LastHeard = lastHeard.Time
		n.FirstSeen = firstSeen.Time
		out = append(out, n)
	}
	return out, rows.Err()
}

// ActiveNodes returns nodes heard since the cutoff.
func (s *Store) ActiveNodes(since time.Time) ([]Node, error) {
	rows, err := s.db.Query(`
		SELECT id, long_name, short_name, hw_model, last_heard, hops_away, snr, battery_level, latitude, longitude, times_heard, first_seen
		FROM nodes WHERE last_heard >= ? ORDER BY last_heard DESC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		var lastHeard, firstSeen sql.NullTime
		if err := rows.Scan(&n.ID, &n.LongName, &n.ShortName, &n.HwModel, &lastHeard, &n.HopsAway, &n.SNR, &n.BatteryLevel, &n.Latitude, &n.Longitude, &n.TimesHeard, &firstSeen); err != nil {
			return nil, err
		}
		n.LastHeard = lastHeard.Time
		n.FirstSeen = firstSeen.Time
		out = append(out, n)
	}
	return out, rows.Err()
}
