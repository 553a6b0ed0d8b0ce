// Package api implements the HTTP status API of the teamalert daemon.
//
// New(store) returns an http.Handler that serves:
//
//	GET /api/v1/health          - overall state and per-state counts
//	GET /api/v1/alerts          - all live alerts ([]AlertResponse)
//	GET /api/v1/alerts/{name}   - single alert; 404 if unknown or stale
//	GET /api/v1/snapshot        - health + all live alerts + generated_at
//	GET /metrics                - Prometheus text exposition of alert state
//
// All JSON endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Read live entries from the store (stale entries excluded from lists)
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
