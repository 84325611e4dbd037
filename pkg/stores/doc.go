// Package stores provides the snapshot catalog for rauzy. It keeps
// versioned copies of model and library documents in SQLite (WAL mode,
// embedded golang-migrate migrations) along with an append-only audit log
// of telemetry events.
package stores
