package store

// SchemaVersion is the current state-tape database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements that create the state-tape
// database: state_span, state_edge, and state_evidence_link, each with
// the indexes the retrieval and vector-index paths depend on.
const Schema = `
CREATE TABLE IF NOT EXISTS state_span (
	state_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	ts_start_ms INTEGER NOT NULL,
	ts_end_ms INTEGER NOT NULL,
	z_embedding BLOB NOT NULL,
	z_dim INTEGER NOT NULL,
	z_dtype TEXT NOT NULL,
	app TEXT,
	window_title_hash TEXT,
	top_entities_json TEXT,
	provenance_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS state_edge (
	edge_id TEXT PRIMARY KEY,
	from_state_id TEXT NOT NULL REFERENCES state_span(state_id),
	to_state_id TEXT NOT NULL REFERENCES state_span(state_id),
	delta_embedding BLOB NOT NULL,
	delta_dim INTEGER NOT NULL,
	delta_dtype TEXT NOT NULL,
	pred_error REAL NOT NULL,
	provenance_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS state_evidence_link (
	id TEXT PRIMARY KEY,
	state_object_type TEXT NOT NULL,
	state_object_id TEXT NOT NULL,
	evidence_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_span_ts ON state_span(ts_start_ms, ts_end_ms);
CREATE INDEX IF NOT EXISTS idx_state_span_session ON state_span(session_id);
CREATE INDEX IF NOT EXISTS idx_state_edge_from_to ON state_edge(from_state_id, to_state_id);
CREATE INDEX IF NOT EXISTS idx_state_evidence_link_object ON state_evidence_link(state_object_type, state_object_id);
`

// InsertSchemaVersion records the schema version applied to a freshly
// created database.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the highest applied schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
