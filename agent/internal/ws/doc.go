// Package ws implements the WebSocket hub of the teamalert status server.
//
// Hub manages a set of connected clients. It broadcasts the current alert
// snapshot on a configurable interval and, as an alert.Observer, pushes
// every alert change the moment it happens.
//
// Message format sent to clients:
//
//	{"event": "snapshot",      "data": { /* GET /api/v1/snapshot */ }}
//	{"event": "alert_changed", "data": { /* alert.Event */ }}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/stream.
package ws
