// Package writer journals connection events to PostgreSQL.
//
// The EventWriter subscribes to a connection manager's event stream and
// batch-inserts one row per event into connection_events. Rows are
// append-only. The journal is an audit trail: it does not replay or
// redeliver anything.
package writer
