package store

// Stats is the aggregate view the monitor and the status command render.
type Stats struct {
	SchemaVersion  int
	RawEvents      int64
	Messages       int64
	Nodes          int64
	UserFacts      int64
	GlobalFacts    int64
	FilteredEvents int64
	OutboxPending  int64
	OutboxInFlight int64
	OutboxSent     int64
	OutboxFailed   int64
}

// Stats collects row counts across the store.
func (s *Store) Stats() (*Stats, error) {
	out := &Stats{}
	var err error
	if out.SchemaVersion, err = s.schemaVersion(); err != nil {
		return nil, err
	}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM raw_events`, &out.RawEvents},
		{`SELECT COUNT(*) FROM messages`, &out.Messages},
		{`SELECT COUNT(*) FROM nodes`, &out.Nodes},
		{`SELECT COUNT(*) FROM user_facts`, &out.UserFacts},
		{`SELECT COUNT(*) FROM global_facts`, &out.GlobalFacts},
		{`SELECT COUNT(*) FROM filtered_content`, &out.FilteredEvents},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		switch status {
		case OutboxPending:
			out.OutboxPending = n
		case OutboxInFlight:
			out.OutboxInFlight = n
		case OutboxSent:
			out.OutboxSent = n
		case OutboxFailed:
			out.OutboxFailed = n
		}
	}
	return out, rows.Err()
}
