package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/health"
	"github.com/teamalert/teamalert/agent/internal/light"
	"github.com/teamalert/teamalert/agent/internal/notifier"
	"github.com/teamalert/teamalert/agent/internal/store"
)

const baseYAML = `
poll_interval: 10ms
alerts:
  - light: desk
    jobs_to_watch: [build, deploy]
  - light: lamp
    jobs_to_watch: [nightly]
`

// jobSet is an alert.JobInventory over a fixed set of jobs.
type jobSet map[string]*health.Job

func (s jobSet) Lookup(_ context.Context, name string) ([]*health.Job, error) {
	j, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", health.ErrNotFound, name)
	}
	return []*health.Job{j}, nil
}

// world is a fake config file plus a fake CI and two physical lights.
type world struct {
	mu          sync.Mutex
	yaml        string
	reports     map[string]health.Report
	fetchErr    map[string]error
	discoverErr error

	loads        atomic.Int32
	reachability atomic.Int32

	desk, lamp *light.Virtual
}

func newWorld() *world {
	return &world{
		yaml: baseYAML,
		reports: map[string]health.Report{
			"build":   {Builds: health.Builds{LastCompleted: 10, LastSuccessful: 10, LastFailed: 9}},
			"deploy":  {Builds: health.Builds{LastCompleted: 101, LastSuccessful: 100, LastFailed: 101}},
			"nightly": {Builds: health.Builds{LastCompleted: 5, LastSuccessful: 5}},
		},
		fetchErr: map[string]error{},
		desk:     light.NewVirtual("desk", nil),
		lamp:     light.NewVirtual("lamp", nil),
	}
}

func (w *world) set(f func(w *world)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f(w)
}

func (w *world) load(string) (*config.Config, error) {
	w.loads.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	return config.Parse([]byte(w.yaml))
}

func (w *world) fetch(_ context.Context, name string) (health.Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fetchErr[name]; err != nil {
		return health.Report{}, err
	}
	return w.reports[name], nil
}

func (w *world) discover(_ context.Context, _ *config.Config) (Inventory, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.discoverErr != nil {
		return Inventory{}, w.discoverErr
	}
	jobs := jobSet{}
	for name := range w.reports {
		jobs[name] = health.NewJob(name, health.FetcherFunc(w.fetch), true)
	}
	return Inventory{
		Lights: []light.Light{w.desk, w.lamp},
		Jobs:   []alert.JobInventory{jobs},
		Reachability: func(context.Context) error {
			w.reachability.Add(1)
			return nil
		},
	}, nil
}

func newTestRunner(w *world, st *store.Store) *Runner {
	opts := []Option{WithLoader(w.load), WithDiscoverer(w.discover)}
	if st != nil {
		opts = append(opts, WithStore(st))
	}
	return New("teamalert.yaml", opts...)
}

func colorOf(v *light.Virtual) light.Color {
	c, _, _ := v.State()
	return c
}

// --- Reload / Tick ---

func TestRunner_ReloadAndTick(t *testing.T) {
	w := newWorld()
	st := store.New(time.Minute)
	r := newTestRunner(w, st)
	ctx := context.Background()

	require.NoError(t, r.Reload(ctx))
	require.Len(t, r.Alerts(), 2)
	assert.Equal(t, 10*time.Millisecond, r.Config().PollInterval)

	require.NoError(t, r.Tick(ctx))

	c, bri, on := w.desk.State()
	assert.Equal(t, light.Red, c)
	assert.Equal(t, 240, bri)
	assert.True(t, on)
	c, bri, _ = w.lamp.State()
	assert.Equal(t, light.White, c)
	assert.Equal(t, 180, bri)

	assert.Equal(t, 2, st.Count())
	e, ok := st.Get("build,deploy")
	require.True(t, ok)
	assert.Equal(t, []string{"deploy"}, e.Status.Unclaimed)
	assert.EqualValues(t, 1, w.reachability.Load())
}

func TestRunner_TickUpdatesInConfigOrder(t *testing.T) {
	w := newWorld()
	var order []string
	r := New("teamalert.yaml",
		WithLoader(w.load),
		WithDiscoverer(w.discover),
		WithObserver(alert.ObserverFunc(func(_ context.Context, ev alert.Event) {
			order = append(order, ev.Alert)
		})),
	)
	ctx := context.Background()

	require.NoError(t, r.Reload(ctx))
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, []string{"build,deploy", "nightly"}, order)
}

func TestRunner_TickContinuesPastErrors(t *testing.T) {
	w := newWorld()
	w.fetchErr["deploy"] = errors.New("connection reset")
	w.fetchErr["nightly"] = errors.New("connection reset")
	r := newTestRunner(w, nil)
	ctx := context.Background()

	require.NoError(t, r.Reload(ctx))
	err := r.Tick(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build,deploy")
	assert.Contains(t, err.Error(), "nightly")

	// The failed jobs fall back to ok; the lights are still driven.
	assert.Equal(t, light.White, colorOf(w.desk))
	assert.Equal(t, light.White, colorOf(w.lamp))
}

func TestRunner_FlashesOnlyAfterFirstTick(t *testing.T) {
	w := newWorld()
	r := newTestRunner(w, nil)
	ctx := context.Background()

	require.NoError(t, r.Reload(ctx))
	require.NoError(t, r.Tick(ctx))
	require.NoError(t, r.Tick(ctx))
	assert.Zero(t, w.desk.Flashes())

	w.set(func(w *world) {
		w.reports["deploy"] = health.Report{Builds: health.Builds{LastCompleted: 102, LastSuccessful: 102, LastFailed: 101}}
	})
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, light.White, colorOf(w.desk))
	assert.Equal(t, 1, w.desk.Flashes())
	assert.Zero(t, w.lamp.Flashes())
}

func TestRunner_ReloadResetsFirstUpdate(t *testing.T) {
	w := newWorld()
	r := newTestRunner(w, nil)
	ctx := context.Background()

	require.NoError(t, r.Reload(ctx))
	require.NoError(t, r.Tick(ctx))

	w.set(func(w *world) {
		w.reports["deploy"] = health.Report{Builds: health.Builds{LastCompleted: 102, LastSuccessful: 102, LastFailed: 101}}
	})
	require.NoError(t, r.Reload(ctx))
	require.NoError(t, r.Tick(ctx))
	assert.Equal(t, light.White, colorOf(w.desk))
	assert.Zero(t, w.desk.Flashes(), "rebuilt alerts start without a previous state")
}

func TestRunner_ReloadsDoNotNotifyWebhooks(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("TEST_RUNNER_HOOK_URL", srv.URL)

	w := newWorld()
	hook := notifier.NewWebhook(config.WebhookConfig{Type: "http", URLEnv: "TEST_RUNNER_HOOK_URL"}, srv.Client())
	r := New("teamalert.yaml",
		WithLoader(w.load),
		WithDiscoverer(w.discover),
		WithObserver(notifier.NewFanout(hook)),
	)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, r.Reload(ctx))
		require.NoError(t, r.Tick(ctx))
	}
	assert.Zero(t, posts.Load(), "unchanged CI data across reloads")

	w.set(func(w *world) {
		w.reports["deploy"] = health.Report{Builds: health.Builds{LastCompleted: 102, LastSuccessful: 102, LastFailed: 101}}
	})
	require.NoError(t, r.Tick(ctx))
	assert.EqualValues(t, 1, posts.Load())
}

func TestRunner_UnnamedAlertsOnSameJobAreStoredApart(t *testing.T) {
	w := newWorld()
	w.yaml = `
alerts:
  - light: desk
    jobs_to_watch: [deploy]
  - light: lamp
    jobs_to_watch: [deploy]
    fail_tolerance: 2
`
	st := store.New(time.Minute)
	r := newTestRunner(w, st)
	ctx := context.Background()

	require.NoError(t, r.Reload(ctx))
	require.NoError(t, r.Tick(ctx))

	assert.Equal(t, 2, st.Count())
	strict, ok := st.Get("deploy")
	require.True(t, ok)
	assert.False(t, strict.Status.OK)
	lenient, ok := st.Get("deploy@lamp")
	require.True(t, ok)
	assert.True(t, lenient.Status.OK)

	assert.Equal(t, light.Red, colorOf(w.desk))
	assert.Equal(t, light.White, colorOf(w.lamp))
}

// --- Rejected reloads ---

func TestRunner_FatalReloadKeepsAlerts(t *testing.T) {
	w := newWorld()
	r := newTestRunner(w, nil)
	ctx := context.Background()
	require.NoError(t, r.Reload(ctx))
	before := r.Alerts()

	w.set(func(w *world) {
		w.yaml = `
strict: true
alerts:
  - light: desk
    jobs_to_watch: [ghost]
`
	})
	require.Error(t, r.Reload(ctx))

	after := r.Alerts()
	require.Len(t, after, 2)
	assert.Same(t, before[0], after[0])
	assert.Equal(t, 10*time.Millisecond, r.Config().PollInterval)
}

func TestRunner_InvalidConfigKeepsAlerts(t *testing.T) {
	w := newWorld()
	r := newTestRunner(w, nil)
	ctx := context.Background()
	require.NoError(t, r.Reload(ctx))

	w.set(func(w *world) { w.yaml = "poll_interval: [" })
	require.Error(t, r.Reload(ctx))
	assert.Len(t, r.Alerts(), 2)
}

func TestRunner_DiscoverErrorKeepsAlerts(t *testing.T) {
	w := newWorld()
	r := newTestRunner(w, nil)
	ctx := context.Background()
	require.NoError(t, r.Reload(ctx))

	w.set(func(w *world) { w.discoverErr = errors.New("jenkins down") })
	err := r.Reload(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jenkins down")
	assert.Len(t, r.Alerts(), 2)
}

func TestRunner_PartialReloadIsApplied(t *testing.T) {
	w := newWorld()
	w.yaml = `
alerts:
  - light: porch
    jobs_to_watch: [build]
  - light: lamp
    jobs_to_watch: [nightly, ghost]
`
	r := newTestRunner(w, nil)
	require.NoError(t, r.Reload(context.Background()))

	alerts := r.Alerts()
	require.Len(t, alerts, 1, "the entry with an unknown light is skipped")
	assert.Equal(t, "nightly", alerts[0].Name())
}

func TestRunner_CreatesMissingLights(t *testing.T) {
	w := newWorld()
	w.yaml = `
create_missing_lights: true
alerts:
  - light: porch
    jobs_to_watch: [deploy]
`
	var out bytes.Buffer
	r := New("teamalert.yaml", WithLoader(w.load), WithDiscoverer(w.discover), WithVirtualOutput(&out))
	ctx := context.Background()

	require.NoError(t, r.Reload(ctx))
	assert.Equal(t, []string{"desk", "lamp", "porch"}, light.Names(r.Lights()))
	require.NoError(t, r.Tick(ctx))

	porch, err := light.Find(r.Lights(), "porch")
	require.NoError(t, err)
	assert.Equal(t, light.Red, colorOf(porch.(*light.Virtual)))
	assert.Contains(t, out.String(), "porch")
}

// --- Run ---

func TestRunner_RunFailsWithoutFirstReload(t *testing.T) {
	w := newWorld()
	w.yaml = "alerts: [{light: desk}]"
	r := newTestRunner(w, nil)

	assert.Error(t, r.Run(context.Background()))
}

func TestRunner_Run(t *testing.T) {
	w := newWorld()
	st := store.New(time.Minute)
	r := newTestRunner(w, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return st.Count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, light.Red, colorOf(w.desk))

	// The poll ticker picks up new CI data.
	w.set(func(w *world) {
		w.reports["deploy"] = health.Report{Builds: health.Builds{LastCompleted: 102, LastSuccessful: 102, LastFailed: 101}}
	})
	require.Eventually(t, func() bool {
		return colorOf(w.desk) == light.White && w.desk.Flashes() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// A reload request rebuilds the alert set.
	w.set(func(w *world) {
		w.yaml = `
poll_interval: 10ms
alerts:
  - light: lamp
    jobs_to_watch: [nightly]
`
	})
	loads := w.loads.Load()
	r.RequestReload()
	require.Eventually(t, func() bool { return len(r.Alerts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Greater(t, w.loads.Load(), loads)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunner_RequestReloadNeverBlocks(t *testing.T) {
	r := newTestRunner(newWorld(), nil)
	for i := 0; i < 5; i++ {
		r.RequestReload()
	}
	assert.Len(t, r.reloadReq, 1)
}

// --- Discover ---

func TestDiscover_VirtualLightsAndJenkins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/api/json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"jobs":[{"name":"build","url":"http://%s/job/build/"}],"views":[]}`, r.Host)
	}))
	defer srv.Close()

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
jenkins:
  - url: %s
    retries: 1
virtual_lights:
  - name: desk
    debug: true
  - name: lamp
`, srv.URL)))
	require.NoError(t, err)

	var out bytes.Buffer
	inv, err := Discover(&out)(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"desk", "lamp"}, light.Names(inv.Lights))
	assert.Nil(t, inv.Reachability)
	require.Len(t, inv.Jobs, 1)
	jobs, err := inv.Jobs[0].Lookup(context.Background(), "build")
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, inv.Lights[0].SetColor(context.Background(), light.Red))
	require.NoError(t, inv.Lights[1].SetColor(context.Background(), light.Red))
	assert.Contains(t, out.String(), "desk")
	assert.NotContains(t, out.String(), "lamp", "only debug lights print")
}

func TestDiscover_HueNeedsUsername(t *testing.T) {
	cfg, err := config.Parse([]byte(`
hue:
  bridge: 192.0.2.10
  username_env: TEST_TEAMALERT_HUE_USER_UNSET
`))
	require.NoError(t, err)

	_, err = Discover(nil)(context.Background(), cfg)
	assert.Error(t, err)
}

func TestDiscover_JenkinsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg, err := config.Parse([]byte("jenkins:\n  - url: " + srv.URL + "\n    retries: 1\n"))
	require.NoError(t, err)

	_, err = Discover(nil)(context.Background(), cfg)
	assert.Error(t, err)
}
