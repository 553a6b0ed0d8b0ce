package api

import (
	"fmt"
	"strings"

	"github.com/teamalert/teamalert/agent/internal/alert"
)

// DiagnosticHint is one human-readable note about an alert, shown next to
// the alert in dashboards.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// computeDiagnostics derives hints from a status, most severe first.
func computeDiagnostics(st alert.Status) []DiagnosticHint {
	var hints []DiagnosticHint

	switch st.State {
	case alert.StateRed:
		hints = append(hints, DiagnosticHint{
			Key:   "unclaimed_failures",
			Level: "critical",
			Title: fmt.Sprintf("%d unclaimed", len(st.Unclaimed)),
			Detail: fmt.Sprintf("Failing and not claimed by anyone: %s. "+
				"Claim the build in Jenkins to turn the light orange.",
				strings.Join(st.Unclaimed, ", ")),
		})
	case alert.StateOrange:
		hints = append(hints, DiagnosticHint{
			Key:   "claimed_failures",
			Level: "warning",
			Title: "Failures claimed",
			Detail: fmt.Sprintf("Failing but claimed: %s.",
				strings.Join(st.Failing, ", ")),
		})
	}

	if len(st.Jobs) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "no_jobs",
			Level:  "warning",
			Title:  "Watches no jobs",
			Detail: "None of the configured jobs were found, so this light always shows ok.",
		})
	}

	if len(st.Ignored) > 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "ignored_jobs",
			Level:  "info",
			Title:  fmt.Sprintf("%d ignored", len(st.Ignored)),
			Detail: "Refreshed but not counted: " + strings.Join(st.Ignored, ", ") + ".",
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "all_ok",
			Level:  "ok",
			Title:  "All jobs ok",
			Detail: fmt.Sprintf("All %d watched jobs are within their fail tolerance.", len(st.Jobs)),
		})
	}
	return hints
}
