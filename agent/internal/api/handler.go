package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/store"
)

// Handler is the HTTP handler for /api/v1/* and /metrics.
// It reads alert statuses from the store and returns JSON responses.
type Handler struct {
	store *store.Store
	mux   *http.ServeMux
	now   func() time.Time
}

// New creates a Handler wired to the given status store and registers all routes.
func New(st *store.Store) http.Handler {
	h := &Handler{store: st, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/alerts/", h.getAlert) // subtree, extracts {name}
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health - overall state and per-state counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, summarize(h.store.List()))
}

// listAlerts returns GET /api/v1/alerts - all live alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, toAlertResponses(h.store.List()))
}

// getAlert returns GET /api/v1/alerts/{name} - a single live alert.
func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	if name == "" {
		h.listAlerts(w, r)
		return
	}

	e, ok := h.store.Get(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}
	// Stale entries are treated as not found.
	if h.now().Sub(e.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}

	jsonResp(w, http.StatusOK, toAlertResponse(e))
}

// snapshot returns GET /api/v1/snapshot - health plus every live alert.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.now()))
}

// BuildSnapshot assembles the snapshot payload from st. The websocket hub
// pushes the same payload.
func BuildSnapshot(st *store.Store, now time.Time) SnapshotResponse {
	entries := st.List()
	return SnapshotResponse{
		Health:      summarize(entries),
		Alerts:      toAlertResponses(entries),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func summarize(entries []*store.Entry) HealthResponse {
	resp := HealthResponse{AlertCount: len(entries)}
	if len(entries) == 0 {
		resp.State = "unknown"
		return resp
	}
	for _, e := range entries {
		switch e.Status.State {
		case alert.StateRed:
			resp.FailingCount++
		case alert.StateOrange:
			resp.ClaimedCount++
		default:
			resp.OKCount++
		}
	}
	switch {
	case resp.FailingCount > 0:
		resp.State = "failing"
	case resp.ClaimedCount > 0:
		resp.State = "claimed"
	default:
		resp.State = "ok"
	}
	return resp
}

func toAlertResponses(entries []*store.Entry) []AlertResponse {
	out := make([]AlertResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAlertResponse(e))
	}
	return out
}

// toAlertResponse maps a store.Entry to its JSON representation.
func toAlertResponse(e *store.Entry) AlertResponse {
	st := e.Status
	return AlertResponse{
		Name:        st.Alert,
		Lights:      nonNil(st.Lights),
		OK:          st.OK,
		State:       string(st.State),
		Color:       string(st.Directive.Color),
		Brightness:  st.Directive.Brightness,
		Jobs:        nonNil(st.Jobs),
		Failing:     nonNil(st.Failing),
		Unclaimed:   nonNil(st.Unclaimed),
		Ignored:     nonNil(st.Ignored),
		Transitions: st.Transitions,
		Diagnostics: computeDiagnostics(st),
		LastSeen:    e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// nonNil keeps empty lists as [] rather than null in JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
