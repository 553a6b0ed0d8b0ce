// Package history keeps a journal of alert transitions in SQLite.
//
// Every change event delivered by the notifier fanout becomes one row in the
// transitions table. The journal is write-only for the daemon: nothing is read
// back on start, alerts always begin from an unknown previous state. The
// history command reads it with Recent and ForAlert.
//
// The schema is embedded and applied with golang-migrate on Open.
package history
