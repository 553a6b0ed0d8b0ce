// Package store keeps the latest status of every alert in memory for the
// status API and the websocket stream. Entries expire after a TTL.
package store
