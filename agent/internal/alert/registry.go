package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/health"
	"github.com/teamalert/teamalert/agent/internal/light"
)

// JobInventory resolves a configured job or view name to live jobs.
// Unknown names return an error wrapping health.ErrNotFound.
type JobInventory interface {
	Lookup(ctx context.Context, name string) ([]*health.Job, error)
}

// Outcome classifies a registry build.
type Outcome int

const (
	// OutcomeOK: every entry was built as configured.
	OutcomeOK Outcome = iota
	// OutcomePartial: some entries were skipped or degraded; see Warnings.
	OutcomePartial
	// OutcomeFatal: the build failed and Alerts must not be used.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomePartial:
		return "partial"
	default:
		return "fatal"
	}
}

// BuildResult is the typed result of Build.
type BuildResult struct {
	Alerts   []*Alert
	Warnings []string
	// Lights is the light inventory after virtual lights were synthesized.
	Lights []light.Light
	Err    error
}

// Outcome reports whether the build succeeded, degraded or failed.
func (r BuildResult) Outcome() Outcome {
	switch {
	case r.Err != nil:
		return OutcomeFatal
	case len(r.Warnings) > 0:
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// BuildOptions selects how configuration problems are handled.
type BuildOptions struct {
	// CreateMissingLights synthesizes a virtual light for unknown light names.
	CreateMissingLights bool
	// SkipIncomplete drops an entry when any watched name is unknown.
	// Otherwise the alert watches the jobs that were found.
	SkipIncomplete bool
	// Strict turns every problem into a fatal result.
	Strict bool

	// Observer is attached to every alert.
	Observer Observer
	// VirtualOut receives the change lines of synthesized lights. Nil is silent.
	VirtualOut io.Writer
}

// Build creates one Alert per entry in cfgs, resolving light names against
// lights and job names against every inventory in order. Problems with one
// entry are recorded as warnings and never stop the others, unless
// opts.Strict is set. Lookup failures other than an unknown name are fatal.
func Build(ctx context.Context, cfgs []config.Alert, lights []light.Light, inventories []JobInventory, opts BuildOptions) BuildResult {
	res := BuildResult{Lights: append([]light.Light(nil), lights...)}
	used := make(map[string]bool, len(cfgs))

	for i, c := range cfgs {
		label := c.Name
		if label == "" {
			label = c.Light
		}

		jobs, missing, err := resolveJobs(ctx, c.JobsToWatch, inventories)
		if err != nil {
			res.Err = fmt.Errorf("alert: entry %d %q: %w", i, label, err)
			return res
		}
		if len(missing) > 0 {
			msg := fmt.Sprintf("%s: unknown jobs %s", label, strings.Join(missing, ","))
			if opts.Strict {
				res.Err = errors.New("alert: " + msg)
				return res
			}
			if opts.SkipIncomplete {
				res.warn(msg + "; alert skipped")
				continue
			}
			res.warn(msg)
		}
		if len(jobs) == 0 {
			msg := fmt.Sprintf("%s: watches no jobs and will always be ok", label)
			if opts.Strict {
				res.Err = errors.New("alert: " + msg)
				return res
			}
			res.warn(msg)
		}

		targets, ok := res.resolveLights(c, opts)
		if !ok {
			if res.Err != nil {
				return res
			}
			continue
		}

		watched := make([]Job, 0, len(jobs))
		for _, j := range jobs {
			watched = append(watched, j)
		}
		name := alertName(c, jobs, targets, used)
		if c.Name != "" && name != c.Name {
			res.warn(fmt.Sprintf("%s: name already used, renamed to %q", c.Name, name))
		}
		a := New(targets, watched,
			WithName(name),
			WithFailTolerance(c.FailTolerance),
			WithIgnored(c.JobsToIgnore...),
			WithObserver(opts.Observer),
		)
		slog.Info("alert: built",
			"alert", a.Name(),
			"lights", light.Names(targets),
			"jobs", len(watched),
			"fail_tolerance", c.FailTolerance,
			"ignores", c.JobsToIgnore,
		)
		res.Alerts = append(res.Alerts, a)
	}
	return res
}

// alertName picks a name for c that no earlier alert took. Unnamed entries
// are named after their jobs, or their lights when they watch none. A taken
// name gets the light names appended, then a counter.
func alertName(c config.Alert, jobs []*health.Job, lights []light.Light, used map[string]bool) string {
	name := c.Name
	if name == "" {
		names := make([]string, 0, len(jobs))
		for _, j := range jobs {
			names = append(names, j.Name())
		}
		name = strings.Join(names, ",")
	}
	lightNames := strings.Join(light.Names(lights), ",")
	if name == "" {
		name = lightNames
	}
	if used[name] {
		base := name + "@" + lightNames
		name = base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s#%d", base, n)
		}
	}
	used[name] = true
	return name
}

// resolveLights maps every light name of c to a target. It reports false
// when the entry has to be skipped; res.Err is set when that is fatal.
func (r *BuildResult) resolveLights(c config.Alert, opts BuildOptions) ([]light.Light, bool) {
	names := c.LightNames()
	targets := make([]light.Light, 0, len(names))
	for _, name := range names {
		l, err := light.Find(r.Lights, name)
		if err == nil {
			targets = append(targets, l)
			continue
		}
		if opts.CreateMissingLights {
			slog.Info("alert: creating virtual light", "light", name)
			v := light.NewVirtual(name, opts.VirtualOut)
			r.Lights = append(r.Lights, v)
			targets = append(targets, v)
			continue
		}
		msg := fmt.Sprintf("light %q does not exist (available: %s)",
			name, strings.Join(light.Names(r.Lights), ", "))
		if opts.Strict {
			r.Err = errors.New("alert: " + msg)
			return nil, false
		}
		r.warn(msg + "; alert skipped")
		return nil, false
	}
	return targets, true
}

func (r *BuildResult) warn(msg string) {
	slog.Warn("alert: configuration problem", "problem", msg)
	r.Warnings = append(r.Warnings, msg)
}

// resolveJobs looks each name up in every inventory. A job reachable through
// several names (a job and a view holding it) is watched once.
func resolveJobs(ctx context.Context, names []string, inventories []JobInventory) ([]*health.Job, []string, error) {
	var (
		jobs    []*health.Job
		missing []string
		seen    = make(map[*health.Job]bool)
	)
	for _, name := range names {
		found := false
		for _, inv := range inventories {
			js, err := inv.Lookup(ctx, name)
			if errors.Is(err, health.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, nil, err
			}
			found = true
			for _, j := range js {
				if !seen[j] {
					seen[j] = true
					jobs = append(jobs, j)
				}
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	return jobs, missing, nil
}
