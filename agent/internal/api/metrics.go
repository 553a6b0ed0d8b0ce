package api

import (
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/teamalert/teamalert/agent/internal/light"
	"github.com/teamalert/teamalert/agent/internal/store"
)

// metrics returns GET /metrics - alert state in Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range metricFamilies(h.store.List()) {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

// metricFamilies renders one sample per alert (and per color for the color
// gauge) in each family.
func metricFamilies(entries []*store.Entry) []*dto.MetricFamily {
	ok := family("teamalert_alert_ok", "1 when every counted job of the alert is ok.", dto.MetricType_GAUGE)
	color := family("teamalert_alert_color", "1 for the color the alert currently shows.", dto.MetricType_GAUGE)
	transitions := family("teamalert_alert_transitions_total", "State changes since the alert was built.", dto.MetricType_COUNTER)
	failing := family("teamalert_alert_failing_jobs", "Counted jobs currently failing.", dto.MetricType_GAUGE)

	for _, e := range entries {
		st := e.Status
		name := label("alert", st.Alert)

		ok.Metric = append(ok.Metric, gauge(boolValue(st.OK), name))
		for _, c := range []light.Color{light.White, light.Red, light.Orange} {
			color.Metric = append(color.Metric,
				gauge(boolValue(st.Directive.Color == c), name, label("color", string(c))))
		}
		transitions.Metric = append(transitions.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{name},
			Counter: &dto.Counter{Value: float64p(float64(st.Transitions))},
		})
		failing.Metric = append(failing.Metric, gauge(float64(len(st.Failing)), name))
	}

	out := []*dto.MetricFamily{ok, color, transitions, failing}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{Name: stringp(name), Help: stringp(help), Type: typ.Enum()}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: float64p(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: stringp(name), Value: stringp(value)}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func stringp(s string) *string    { return &s }
func float64p(v float64) *float64 { return &v }
