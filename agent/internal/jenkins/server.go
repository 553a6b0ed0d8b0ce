package jenkins

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/health"
)

const (
	treeTop      = "jobs[name,url],views[name,url]"
	treeView     = "jobs[name]"
	treeJob      = "builds[number],lastSuccessfulBuild[number],lastFailedBuild[number],lastCompletedBuild[number,url]"
	treeClaimers = "number,actions[claimed]"
)

var _ health.Fetcher = (*Server)(nil)

// Server is one Jenkins instance used as a job source. It creates one
// health.Job per discovered job; those jobs refresh themselves through the
// Server's Fetch.
//
// All exported methods are safe for concurrent use.
type Server struct {
	cfg    config.Jenkins
	client *http.Client

	mu      sync.RWMutex
	jobs    map[string]*health.Job
	jobURLs map[string]string
	views   map[string]string
}

// New returns a Server for cfg. Call Discover before Lookup.
func New(cfg config.Jenkins) *Server {
	return NewWithClient(cfg, buildHTTPClient(cfg))
}

// NewWithClient returns a Server that uses client for every request.
func NewWithClient(cfg config.Jenkins, client *http.Client) *Server {
	return &Server{
		cfg:     cfg,
		client:  client,
		jobs:    make(map[string]*health.Job),
		jobURLs: make(map[string]string),
		views:   make(map[string]string),
	}
}

// URL returns the Jenkins root URL.
func (s *Server) URL() string { return s.cfg.URL }

// Discover fetches the top-level job and view lists. Jobs that survive a
// rediscovery keep their *health.Job.
func (s *Server) Discover(ctx context.Context) error {
	var top struct {
		Jobs []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"jobs"`
		Views []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"views"`
	}
	if err := getJSON(ctx, s.client, s.cfg.Retries, apiURL(s.cfg.URL, treeTop), &top); err != nil {
		return fmt.Errorf("jenkins %s: discover: %w", s.cfg.URL, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make(map[string]*health.Job, len(top.Jobs))
	jobURLs := make(map[string]string, len(top.Jobs))
	for _, j := range top.Jobs {
		if j.Name == "" {
			continue
		}
		job, ok := s.jobs[j.Name]
		if !ok {
			job = health.NewJob(j.Name, s, s.cfg.IgnoresNeverSucceeded())
		}
		jobs[j.Name] = job
		jobURLs[j.Name] = j.URL
	}
	views := make(map[string]string, len(top.Views))
	for _, v := range top.Views {
		if v.Name != "" {
			views[v.Name] = v.URL
		}
	}
	s.jobs, s.jobURLs, s.views = jobs, jobURLs, views

	slog.Info("jenkins: discovered", "url", s.cfg.URL, "jobs", len(jobs), "views", len(views))
	return nil
}

// Lookup resolves a job name, or a view name to the jobs it lists.
// Unknown names return an error wrapping health.ErrNotFound.
func (s *Server) Lookup(ctx context.Context, name string) ([]*health.Job, error) {
	s.mu.RLock()
	job, isJob := s.jobs[name]
	viewURL, isView := s.views[name]
	s.mu.RUnlock()

	switch {
	case isJob:
		return []*health.Job{job}, nil
	case !isView:
		return nil, fmt.Errorf("jenkins %s: %w: %q", s.cfg.URL, health.ErrNotFound, name)
	}

	var view struct {
		Jobs []struct {
			Name string `json:"name"`
		} `json:"jobs"`
	}
	if err := getJSON(ctx, s.client, s.cfg.Retries, apiURL(viewURL, treeView), &view); err != nil {
		return nil, fmt.Errorf("jenkins %s: view %q: %w", s.cfg.URL, name, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*health.Job, 0, len(view.Jobs))
	for _, vj := range view.Jobs {
		j, ok := s.jobs[vj.Name]
		if !ok {
			slog.Warn("jenkins: view lists unknown job", "url", s.cfg.URL, "view", name, "job", vj.Name)
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

// Jobs returns the discovered job names in order.
func (s *Server) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Views returns the discovered view names in order.
func (s *Server) Views() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.views))
	for name := range s.views {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type buildRef struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Fetch reads the build numbers of job name and the claim state of its last
// completed build. A job without builds or without a completed build yields
// health.ErrIncomplete.
func (s *Server) Fetch(ctx context.Context, name string) (health.Report, error) {
	s.mu.RLock()
	jobURL, ok := s.jobURLs[name]
	s.mu.RUnlock()
	if !ok {
		return health.Report{}, fmt.Errorf("jenkins %s: %w: %q", s.cfg.URL, health.ErrNotFound, name)
	}

	var job struct {
		Builds              []buildRef `json:"builds"`
		LastSuccessfulBuild *buildRef  `json:"lastSuccessfulBuild"`
		LastFailedBuild     *buildRef  `json:"lastFailedBuild"`
		LastCompletedBuild  *buildRef  `json:"lastCompletedBuild"`
	}
	if err := getJSON(ctx, s.client, s.cfg.Retries, apiURL(jobURL, treeJob), &job); err != nil {
		return health.Report{}, fmt.Errorf("jenkins %s: job %q: %w", s.cfg.URL, name, err)
	}
	if len(job.Builds) == 0 || job.LastCompletedBuild == nil {
		return health.Report{}, fmt.Errorf("jenkins %s: job %q: %w", s.cfg.URL, name, health.ErrIncomplete)
	}

	var build struct {
		Number  int `json:"number"`
		Actions []struct {
			Claimed bool `json:"claimed"`
		} `json:"actions"`
	}
	if err := getJSON(ctx, s.client, s.cfg.Retries, apiURL(job.LastCompletedBuild.URL, treeClaimers), &build); err != nil {
		return health.Report{}, fmt.Errorf("jenkins %s: job %q: last build: %w", s.cfg.URL, name, err)
	}

	r := health.Report{Builds: health.Builds{LastCompleted: build.Number}}
	if r.Builds.LastCompleted == 0 {
		r.Builds.LastCompleted = job.LastCompletedBuild.Number
	}
	if job.LastFailedBuild != nil {
		r.Builds.LastFailed = job.LastFailedBuild.Number
	}
	if job.LastSuccessfulBuild != nil {
		r.Builds.LastSuccessful = job.LastSuccessfulBuild.Number
	}
	for _, a := range build.Actions {
		if a.Claimed {
			r.Claimed = true
			break
		}
	}
	return r, nil
}
