// Package queue persists news items and their pipeline status.
//
// The SQLite Store is the default backend. It offers select-by-status in
// insertion order and a compare-and-swap status update that refuses anything
// other than a single forward step. Every stage worker shares one database and
// coordinates exclusively through UpdateStatus, so a second accidental worker
// can only lose races, never corrupt rows.
//
// The package also records per-stage tick summaries for `newsflow status` and
// exposes CheckHealth for diagnostics.
package queue
