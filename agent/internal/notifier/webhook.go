package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/light"
)

// Webhook posts change events to a Slack, Teams or plain HTTP endpoint.
type Webhook struct {
	kind   string
	url    string
	client *http.Client
}

// NewWebhook returns a Webhook for cfg. The URL is resolved from the
// environment once, here. client may be nil for a default client.
func NewWebhook(cfg config.WebhookConfig, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Webhook{kind: cfg.Type, url: cfg.URL(), client: client}
}

// Name returns "webhook:<type>".
func (w *Webhook) Name() string { return "webhook:" + w.kind }

// Send posts ev. A webhook without URL is skipped silently, and so are
// initial events.
func (w *Webhook) Send(ctx context.Context, ev alert.Event) error {
	if w.url == "" || ev.Initial() {
		return nil
	}
	var payload any
	switch w.kind {
	case "slack":
		payload = map[string]string{"text": summary(ev, "*")}
	case "teams":
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": themeColor(ev.Color),
			"summary":    ev.Alert,
			"title":      fmt.Sprintf("teamalert: %s is now %s", ev.Alert, ev.Color),
			"text":       summary(ev, "**"),
		}
	case "http":
		payload = map[string]any{"event": ev}
	default:
		return fmt.Errorf("unknown webhook type %q", w.kind)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return w.post(ctx, body)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// summary renders ev as one line, emphasising the alert name with mark.
func summary(ev alert.Event, mark string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s is now %s", mark, ev.Alert, mark, ev.Color)
	if len(ev.Unclaimed) > 0 {
		fmt.Fprintf(&b, " (unclaimed: %s)", strings.Join(ev.Unclaimed, ", "))
	}
	return b.String()
}

func themeColor(c light.Color) string {
	switch c {
	case light.Red:
		return "FF4F6A"
	case light.Orange:
		return "FFAB40"
	default:
		return "2EB67D"
	}
}
