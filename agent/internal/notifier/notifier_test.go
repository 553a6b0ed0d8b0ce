package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/light"
)

// initialEvent is what the first update of an alert announces.
func initialEvent() alert.Event {
	ev := redEvent()
	ev.PrevColor = ""
	ev.Flashed = false
	return ev
}

func redEvent() alert.Event {
	return alert.Event{
		ID:        "ev-1",
		Alert:     "build,deploy",
		Lights:    []string{"desk"},
		State:     alert.StateRed,
		Color:     light.Red,
		PrevColor: light.White,
		Flashed:   true,
		Unclaimed: []string{"deploy"},
		At:        time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- Fanout ---

type stubSink struct {
	name string
	err  error
	got  []alert.Event
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Send(ctx context.Context, ev alert.Event) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	s.got = append(s.got, ev)
	return s.err
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	failing := &stubSink{name: "broken", err: errors.New("boom")}
	ok := &stubSink{name: "ok"}
	f := NewFanout(failing)
	f.Add(ok)
	require.Equal(t, 2, f.Len())

	f.Notify(context.Background(), redEvent())

	assert.Len(t, failing.got, 1)
	assert.Len(t, ok.got, 1, "a failing sink does not stop the others")
}

func TestFromObserver(t *testing.T) {
	var got []alert.Event
	s := FromObserver("ws", alert.ObserverFunc(func(_ context.Context, ev alert.Event) {
		got = append(got, ev)
	}))
	require.NoError(t, s.Send(context.Background(), initialEvent()))
	require.NoError(t, s.Send(context.Background(), redEvent()))
	assert.Equal(t, "ws", s.Name())
	assert.Len(t, got, 2, "observers see initial events too")
}

type stubRecorder struct{ n int }

func (r *stubRecorder) Record(context.Context, alert.Event) error { r.n++; return nil }

func TestJournal(t *testing.T) {
	r := &stubRecorder{}
	s := Journal(r)
	require.NoError(t, s.Send(context.Background(), redEvent()))
	assert.Equal(t, 1, r.n)
	assert.Equal(t, "history", s.Name())
}

func TestJournal_SkipsInitialEvents(t *testing.T) {
	r := &stubRecorder{}
	require.NoError(t, Journal(r).Send(context.Background(), initialEvent()))
	assert.Zero(t, r.n)
}

// --- Webhook ---

func captureServer(t *testing.T, status int) (*httptest.Server, func() map[string]any) {
	t.Helper()
	var (
		mu   sync.Mutex
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(data, &body)
		mu.Unlock()
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type: got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return body
	}
}

func TestWebhook_Slack(t *testing.T) {
	srv, body := captureServer(t, http.StatusOK)
	t.Setenv("TEST_SLACK_URL", srv.URL)

	w := NewWebhook(config.WebhookConfig{Type: "slack", URLEnv: "TEST_SLACK_URL"}, srv.Client())
	require.NoError(t, w.Send(context.Background(), redEvent()))

	assert.Equal(t, "*build,deploy* is now red (unclaimed: deploy)", body()["text"])
	assert.Equal(t, "webhook:slack", w.Name())
}

func TestWebhook_Teams(t *testing.T) {
	srv, body := captureServer(t, http.StatusOK)
	t.Setenv("TEST_TEAMS_URL", srv.URL)

	w := NewWebhook(config.WebhookConfig{Type: "teams", URLEnv: "TEST_TEAMS_URL"}, srv.Client())
	require.NoError(t, w.Send(context.Background(), redEvent()))

	b := body()
	assert.Equal(t, "MessageCard", b["@type"])
	assert.Equal(t, "FF4F6A", b["themeColor"])
	assert.Equal(t, "teamalert: build,deploy is now red", b["title"])
}

func TestWebhook_HTTP(t *testing.T) {
	srv, body := captureServer(t, http.StatusOK)
	t.Setenv("TEST_HOOK_URL", srv.URL)

	w := NewWebhook(config.WebhookConfig{Type: "http", URLEnv: "TEST_HOOK_URL"}, srv.Client())
	require.NoError(t, w.Send(context.Background(), redEvent()))

	ev, ok := body()["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ev-1", ev["id"])
	assert.Equal(t, "red", ev["color"])
	assert.Equal(t, "white", ev["prev_color"])
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)
	t.Setenv("TEST_HOOK_URL", srv.URL)

	w := NewWebhook(config.WebhookConfig{Type: "http", URLEnv: "TEST_HOOK_URL"}, srv.Client())
	assert.Error(t, w.Send(context.Background(), redEvent()))
}

func TestWebhook_SkipsInitialEvents(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("TEST_HOOK_URL", srv.URL)

	w := NewWebhook(config.WebhookConfig{Type: "http", URLEnv: "TEST_HOOK_URL"}, srv.Client())
	require.NoError(t, w.Send(context.Background(), initialEvent()))
	assert.Zero(t, posts.Load())

	require.NoError(t, w.Send(context.Background(), redEvent()))
	assert.EqualValues(t, 1, posts.Load())
}

func TestWebhook_NoURLSkipped(t *testing.T) {
	w := NewWebhook(config.WebhookConfig{Type: "slack", URLEnv: "TEST_UNSET_WEBHOOK"}, nil)
	assert.NoError(t, w.Send(context.Background(), redEvent()))
}

// --- NATS ---

type stubPublisher struct{ msgs []*nats.Msg }

func (p *stubPublisher) PublishMsg(m *nats.Msg) error {
	p.msgs = append(p.msgs, m)
	return nil
}

func TestNATS_Send(t *testing.T) {
	pub := &stubPublisher{}
	n := NewNATS(pub, "teamalert.events.")

	require.NoError(t, n.Send(context.Background(), redEvent()))
	require.Len(t, pub.msgs, 1)

	msg := pub.msgs[0]
	assert.Equal(t, "teamalert.events.build,deploy", msg.Subject)
	assert.Equal(t, "ev-1", msg.Header.Get("Event-Id"))

	var ev alert.Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, light.Red, ev.Color)
	assert.True(t, ev.Flashed)
}

func TestNATS_SkipsInitialEvents(t *testing.T) {
	pub := &stubPublisher{}
	n := NewNATS(pub, "teamalert.events.")
	require.NoError(t, n.Send(context.Background(), initialEvent()))
	assert.Empty(t, pub.msgs)
}

func TestNATS_Subject(t *testing.T) {
	n := NewNATS(&stubPublisher{}, "x")
	assert.Equal(t, "x.Nightly_view", n.Subject("Nightly view"))
	assert.Equal(t, "x.a_b", n.Subject("a.b"))
	assert.Equal(t, "x.all__", n.Subject("all*>"))

	bare := NewNATS(&stubPublisher{}, "")
	assert.Equal(t, "desk", bare.Subject("desk"))
}
