package store

// CurrentSchemaVersion is the newest migration this build understands.
const CurrentSchemaVersion = 3

type migration struct {
	version int
	sql     string
}

// migrations are ordered and applied transactionally per step. Statements
// use IF NOT EXISTS so a step is harmless if reapplied against a file that
// already carries its objects.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS raw_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	from_id TEXT NOT NULL DEFAULT '',
	to_id TEXT NOT NULL DEFAULT '',
	channel INTEGER NOT NULL DEFAULT 0,
	rx_time DATETIME NOT NULL,
	snr REAL NOT NULL DEFAULT 0,
	rssi INTEGER NOT NULL DEFAULT 0,
	hop_limit INTEGER NOT NULL DEFAULT 0,
	hop_start INTEGER NOT NULL DEFAULT 0,
	payload TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_raw_events_from ON raw_events(from_id);
CREATE INDEX IF NOT EXISTS idx_raw_events_time ON raw_events(rx_time);
CREATE INDEX IF NOT EXISTS idx_raw_events_kind ON raw_events(kind);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	long_name TEXT NOT NULL DEFAULT '',
	short_name TEXT NOT NULL DEFAULT '',
	hw_model TEXT NOT NULL DEFAULT '',
	last_heard DATETIME,
	hops_away INTEGER NOT NULL DEFAULT 0,
	snr REAL NOT NULL DEFAULT 0,
	battery_level INTEGER NOT NULL DEFAULT 0,
	latitude REAL NOT NULL DEFAULT 0,
	longitude REAL NOT NULL DEFAULT 0,
	times_heard INTEGER NOT NULL DEFAULT 0,
	first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_nodes_lastheard ON nodes(last_heard);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	direction TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	channel INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL,
	raw_event_id INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(created_at);

CREATE TABLE IF NOT EXISTS db_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS user_facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	fact TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_user_facts_user ON user_facts(user_id);

CREATE TABLE IF NOT EXISTS global_facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fact TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS filtered_content (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id TEXT NOT NULL,
	text TEXT NOT NULL,
	rule TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS telemetry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id TEXT NOT NULL,
	battery_level INTEGER NOT NULL DEFAULT 0,
	voltage REAL NOT NULL DEFAULT 0,
	channel_utilization REAL NOT NULL DEFAULT 0,
	air_util_tx REAL NOT NULL DEFAULT 0,
	temperature REAL NOT NULL DEFAULT 0,
	relative_humidity REAL NOT NULL DEFAULT 0,
	barometric_pressure REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_telemetry_node ON telemetry(node_id);

CREATE TABLE IF NOT EXISTS positions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	altitude INTEGER NOT NULL DEFAULT 0,
	speed REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_positions_node ON positions(node_id);

CREATE TABLE IF NOT EXISTS routing (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_id TEXT NOT NULL,
	dest TEXT NOT NULL DEFAULT '',
	request_id INTEGER NOT NULL DEFAULT 0,
	result TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS neighbors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	node_id TEXT NOT NULL,
	neighbor_id TEXT NOT NULL,
	snr REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_neighbors_node ON neighbors(node_id);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS outbox (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	idempotency_key TEXT NOT NULL,
	dest TEXT NOT NULL DEFAULT '^all',
	channel INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	claimed_at DATETIME,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_live_key
	ON outbox(idempotency_key) WHERE status IN ('pending', 'in_flight');
`,
	},
}
