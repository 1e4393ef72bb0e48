package writer

// CreateEventsTable creates the journal table if it does not exist.
const CreateEventsTable = `
CREATE TABLE IF NOT EXISTS connection_events (
	id          UUID PRIMARY KEY,
	source      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	event_name  TEXT NOT NULL DEFAULT '',
	headers     JSONB NOT NULL DEFAULT '{}',
	payload     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	received_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS connection_events_received_at_idx
	ON connection_events (received_at);
`

const insertEvent = `
	INSERT INTO connection_events (id, source, kind, event_name, headers, payload, error, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`
