package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok" when every alert is green, "failing" when any alert is
	// red, "claimed" when the only failures are claimed, "unknown" when no
	// alert has reported yet.
	State        string `json:"state"`
	AlertCount   int    `json:"alert_count"`
	OKCount      int    `json:"ok_count"`
	FailingCount int    `json:"failing_count"`
	ClaimedCount int    `json:"claimed_count"`
}

// AlertResponse is one alert entry in GET /api/v1/alerts or
// GET /api/v1/alerts/{name}.
type AlertResponse struct {
	Name        string           `json:"name"`
	Lights      []string         `json:"lights"`
	OK          bool             `json:"ok"`
	State       string           `json:"state"`
	Color       string           `json:"color"`
	Brightness  int              `json:"brightness"`
	Jobs        []string         `json:"jobs"`
	Failing     []string         `json:"failing"`
	Unclaimed   []string         `json:"unclaimed"`
	Ignored     []string         `json:"ignored"`
	Transitions int              `json:"transitions"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
	LastSeen    string           `json:"last_seen"` // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	Health      HealthResponse  `json:"health"`
	Alerts      []AlertResponse `json:"alerts"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
