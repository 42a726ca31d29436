// Package database provides SQLite storage for the media converter.
//
// It holds two tables:
//   - conversions: the append-only history of completed conversions
//   - quota_usage: one rolling-window usage row per identity key
//
// The database uses WAL mode and immediate transactions. QuotaStore wraps a
// Database as a quota.Store whose Charge performs the read, ceiling check and
// increment inside one transaction, so the ledger stays consistent across
// concurrent requests.
package database
