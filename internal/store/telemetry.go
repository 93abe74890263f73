package store

import (
	"database/sql"
	"time"
)

// TelemetryRow is one device-metrics sample for a node.
type TelemetryRow struct {
	ID           int64
	NodeID       string
	BatteryLevel int
	Voltage      float64
	ChannelUtil  float64
	AirUtilTX    float64
	Temperature  float64
	Humidity     float64
	Pressure     float64
	CreatedAt    time.Time
}

// SaveTelemetry appends one telemetry sample.
func (s *Store) SaveTelemetry(t *TelemetryRow) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO telemetry (node_id, battery_level, voltage, channel_utilization, air_util_tx, temperature, relative_humidity, barometric_pressure)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.NodeID, t.BatteryLevel, t.Voltage, t.ChannelUtil, t.AirUtilTX, t.Temperature, t.Humidity, t.Pressure)
		return err
	})
}

// RecentTelemetry returns the newest samples for one node.
func (s *Store) RecentTelemetry(nodeID string, limit int) ([]TelemetryRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, node_id, battery_level, voltage, channel_utilization, air_util_tx, temperature, relative_humidity, barometric_pressure, created_at
		FROM telemetry WHERE node_id = ? ORDER BY id DESC LIMIT ?`, nodeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TelemetryRow
	for rows.Next() {
		var t TelemetryRow
		if err := rows.Scan(&t.ID, &t.NodeID, &t.BatteryLevel, &t.Voltage, &t.ChannelUtil, &t.AirUtilTX, &t.Temperature, &t.Humidity, &t.Pressure, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PositionRow is one location fix for a node.
type PositionRow struct {
	ID        int64
	NodeID    string
	Latitude  float64
	Longitude float64
	Altitude  int
	Speed     float64
	CreatedAt time.Time
}

// SavePosition appends one position fix.
func (s *Store) SavePosition(p *PositionRow) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO positions (node_id, latitude, longitude, altitude, speed)
			VALUES (?, ?, ?, ?, ?)`,
			p.NodeID, p.Latitude, p.Longitude, p.Altitude, p.Speed)
		return err
	})
}

// RecentPositions returns the newest fixes for one node.
func (s *Store) RecentPositions(nodeID string, limit int) ([]PositionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, node_id, latitude, longitude, altitude, speed, created_at
		FROM positions WHERE node_id = ? ORDER BY id DESC LIMIT ?`, nodeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var p PositionRow
		if err := rows.Scan(&p.ID, &p.NodeID, &p.Latitude, &p.Longitude, &p.Altitude, &p.Speed, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveRouting appends one route discovery result.
func (s *Store) SaveRouting(fromID, dest string, requestID uint32, result string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO routing (from_id, dest, request_id, result) VALUES (?, ?, ?, ?)`,
			fromID, dest, requestID, result)
		return err
	})
}

// SaveNeighbor appends one neighbor-report entry.
func (s *Store) SaveNeighbor(nodeID, neighborID string, snr float64) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO neighbors (node_id, neighbor_id, snr) VALUES (?, ?, ?)`,
			nodeID, neighborID, snr)
		return err
	})
}
