package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teamalert/teamalert/agent/internal/light"
)

// State is the aggregate severity of an alert for one tick.
type State string

const (
	// StateGreen: every watched, non-ignored job is ok.
	StateGreen State = "green"
	// StateRed: at least one failing job has not been claimed.
	StateRed State = "red"
	// StateOrange: every failing job has been claimed.
	StateOrange State = "orange"
)

// Directive is what an alert asks its lights to show.
type Directive struct {
	Color      light.Color `json:"color"`
	Brightness int         `json:"brightness"`
}

// Directives per state.
var (
	DirectiveGreen  = Directive{Color: light.White, Brightness: 180}
	DirectiveRed    = Directive{Color: light.Red, Brightness: 240}
	DirectiveOrange = Directive{Color: light.Orange, Brightness: 240}
)

// DirectiveFor returns the light directive for s.
func DirectiveFor(s State) Directive {
	switch s {
	case StateRed:
		return DirectiveRed
	case StateOrange:
		return DirectiveOrange
	default:
		return DirectiveGreen
	}
}

// Job is the capability an alert needs from a monitored job.
// *health.Job satisfies it.
type Job interface {
	Name() string
	Refresh(ctx context.Context) error
	OK(failTolerance int) bool
	Claimed() bool
}

// signature identifies a meaningful state. Two ticks with the same
// signature are the same state for flashing and logging purposes.
type signature struct {
	ok    bool
	color light.Color
}

// Alert aggregates the health of a group of jobs onto a group of lights.
//
// Update is meant to be called from a single goroutine; the mutex only
// protects Last against concurrent readers.
type Alert struct {
	name          string
	lights        []light.Light
	jobs          []Job
	failTolerance int
	ignore        []string
	observer      Observer
	now           func() time.Time

	mu          sync.Mutex
	prev        *signature
	firstUpdate bool
	transitions int
	last        Status
}

// Option customises an Alert.
type Option func(*Alert)

// WithName overrides the derived name.
func WithName(name string) Option {
	return func(a *Alert) {
		if name != "" {
			a.name = name
		}
	}
}

// WithFailTolerance sets how many builds a failure may lie beyond the
// latest success before a job counts as failing.
func WithFailTolerance(n int) Option {
	return func(a *Alert) { a.failTolerance = n }
}

// WithIgnored excludes jobs whose name contains any of patterns.
func WithIgnored(patterns ...string) Option {
	return func(a *Alert) {
		for _, p := range patterns {
			if p != "" {
				a.ignore = append(a.ignore, p)
			}
		}
	}
}

// WithObserver registers o to receive an Event on every state change.
func WithObserver(o Observer) Option {
	return func(a *Alert) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Alert) { a.now = now }
}

// New returns an Alert driving lights from jobs. Without WithName the alert
// is named after its jobs, comma separated.
func New(lights []light.Light, jobs []Job, opts ...Option) *Alert {
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	a := &Alert{
		name:        strings.Join(names, ","),
		lights:      lights,
		jobs:        jobs,
		observer:    Nop{},
		now:         time.Now,
		firstUpdate: true,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name returns the alert name.
func (a *Alert) Name() string { return a.name }

// Lights returns the light targets.
func (a *Alert) Lights() []light.Light { return a.lights }

// Jobs returns every watched job, ignored ones included.
func (a *Alert) Jobs() []Job { return a.jobs }

// FailTolerance returns the configured fail tolerance.
func (a *Alert) FailTolerance() int { return a.failTolerance }

// Ignored returns the ignore patterns.
func (a *Alert) Ignored() []string { return a.ignore }

// String describes the alert the way the check command prints it.
func (a *Alert) String() string {
	return fmt.Sprintf("%s is showing status from %s",
		strings.Join(light.Names(a.lights), ","), a.name)
}

// Last returns the Status computed by the most recent Update.
func (a *Alert) Last() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Update runs one tick: refresh every job, aggregate, drive the lights and
// announce a change of (ok, color).
//
// Lights are driven on every tick. They flash only when the state changed
// and this is not the first update of the alert. Refresh and light errors
// never abort the tick; they are joined and returned with the Status.
func (a *Alert) Update(ctx context.Context) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, j := range a.jobs {
		if err := j.Refresh(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	var counted, failing, unclaimed, ignored []string
	for _, j := range a.jobs {
		if a.isIgnored(j.Name()) {
			ignored = append(ignored, j.Name())
			continue
		}
		counted = append(counted, j.Name())
		if j.OK(a.failTolerance) {
			continue
		}
		failing = append(failing, j.Name())
		if !j.Claimed() {
			unclaimed = append(unclaimed, j.Name())
		}
	}

	ok := len(failing) == 0
	state := StateGreen
	if !ok {
		state = StateRed
		if len(unclaimed) == 0 {
			state = StateOrange
		}
	}
	d := DirectiveFor(state)

	for _, l := range a.lights {
		if err := l.SetColor(ctx, d.Color); err != nil {
			errs = append(errs, err)
		}
		if err := l.SetBrightness(ctx, d.Brightness); err != nil {
			errs = append(errs, err)
		}
	}

	sig := signature{ok: ok, color: d.Color}
	changed := a.prev == nil || *a.prev != sig
	flashed := false
	if changed {
		a.transitions++
		if !a.firstUpdate {
			for _, l := range a.lights {
				if err := l.Flash(ctx); err != nil {
					errs = append(errs, err)
				}
			}
			flashed = true
		}
		slog.Info("alert changed",
			"alert", a.name,
			"lights", light.Names(a.lights),
			"color", d.Color,
			"flashed", flashed,
		)
		if !ok && len(unclaimed) > 0 {
			slog.Info("alert unclaimed failures", "alert", a.name, "jobs", unclaimed)
		}
	}

	var prevColor light.Color
	if a.prev != nil {
		prevColor = a.prev.color
	}
	a.prev = &sig
	a.firstUpdate = false

	now := a.now()
	st := Status{
		Alert:       a.name,
		Lights:      light.Names(a.lights),
		OK:          ok,
		State:       state,
		Directive:   d,
		Jobs:        counted,
		Failing:     failing,
		Unclaimed:   unclaimed,
		Ignored:     ignored,
		Transitions: a.transitions,
		Changed:     changed,
		UpdatedAt:   now,
	}
	a.last = st

	if changed {
		a.observer.Notify(ctx, Event{
			ID:        uuid.NewString(),
			Alert:     a.name,
			Lights:    st.Lights,
			OK:        ok,
			State:     state,
			Color:     d.Color,
			PrevColor: prevColor,
			Flashed:   flashed,
			Unclaimed: unclaimed,
			At:        now,
		})
	}

	return st, errors.Join(errs...)
}

func (a *Alert) isIgnored(name string) bool {
	for _, p := range a.ignore {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}
