package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrIncomplete is returned by a Fetcher when the source answered but the
	// build metadata needed for a verdict is missing. The job falls back to
	// the safe default (ok, not claimed).
	ErrIncomplete = errors.New("incomplete build metadata")

	// ErrNotFound is returned when a job or view name is unknown to a source.
	ErrNotFound = errors.New("job not found")
)

// Report is one refresh worth of data for a job.
type Report struct {
	Builds Builds
	// Claimed is true when a human has claimed the last completed build.
	Claimed bool
}

// Fetcher retrieves the current Report for a named job.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (Report, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, name string) (Report, error)

// Fetch calls f(ctx, name).
func (f FetcherFunc) Fetch(ctx context.Context, name string) (Report, error) {
	return f(ctx, name)
}

// Job is the health of one monitored CI job, refreshed in place every tick.
// A Job may be shared by several alerts; each alert evaluates it with its
// own fail tolerance.
//
// All exported methods are safe for concurrent use.
type Job struct {
	name                 string
	fetcher              Fetcher
	ignoreNeverSucceeded bool

	mu          sync.RWMutex
	report      Report
	refreshedAt time.Time
	lastErr     error
}

// NewJob returns a Job that is refreshed through f.
func NewJob(name string, f Fetcher, ignoreNeverSucceeded bool) *Job {
	return &Job{name: name, fetcher: f, ignoreNeverSucceeded: ignoreNeverSucceeded}
}

// Name returns the job name, unique within its source.
func (j *Job) Name() string { return j.name }

// Refresh replaces the job's report with freshly fetched data. The previous
// report is never carried over: on any error the job resets to the safe
// default so a claim from an earlier failure cannot leak into a new one.
//
// Incomplete metadata is logged and swallowed. Other fetch errors are
// returned after the reset.
func (j *Job) Refresh(ctx context.Context) error {
	r, err := j.fetcher.Fetch(ctx, j.name)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.refreshedAt = time.Now()
	j.lastErr = err

	if err != nil {
		j.report = Report{}
		if errors.Is(err, ErrIncomplete) {
			slog.Warn("health: missing build data, treating job as ok",
				"job", j.name, "err", err)
			return nil
		}
		return fmt.Errorf("health: refresh %q: %w", j.name, err)
	}

	j.report = r
	if v := Evaluate(r.Builds, 0, j.ignoreNeverSucceeded); !v.OK {
		slog.Debug("health: job failing",
			"job", j.name,
			"last_failed", r.Builds.LastFailed,
			"last_successful", r.Builds.LastSuccessful,
			"claimed", r.Claimed,
		)
	}
	return nil
}

// Verdict evaluates the current report with the given fail tolerance.
func (j *Job) Verdict(failTolerance int) Verdict {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Evaluate(j.report.Builds, failTolerance, j.ignoreNeverSucceeded)
}

// OK reports whether the job is healthy within failTolerance.
func (j *Job) OK(failTolerance int) bool {
	return j.Verdict(failTolerance).OK
}

// LastBuildOK reports whether the latest completed build is green.
func (j *Job) LastBuildOK() bool {
	return j.Verdict(0).LastBuildOK
}

// Claimed reports whether the current failure has been acknowledged.
// Only meaningful when the job is not OK.
func (j *Job) Claimed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.report.Claimed
}

// Builds returns the build numbers from the latest refresh.
func (j *Job) Builds() Builds {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.report.Builds
}

// LastError returns the error from the latest refresh, if any.
func (j *Job) LastError() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastErr
}

// RefreshedAt returns when the job was last refreshed.
func (j *Job) RefreshedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.refreshedAt
}
