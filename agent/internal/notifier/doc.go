// Package notifier delivers alert change events outside the process.
//
// Fanout implements alert.Observer and passes each event to its sinks:
// Webhook (Slack, Teams or plain JSON POST), NATS (JSON on
// <subject>.<alert>) and Journal (the SQLite transition history). A failing
// sink is logged and does not affect the others or the alert tick.
package notifier
