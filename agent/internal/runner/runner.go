package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/light"
	"github.com/teamalert/teamalert/agent/internal/store"
)

// Runner owns the current alert set. Tick and Reload serialize on one lock.
type Runner struct {
	path       string
	load       func(path string) (*config.Config, error)
	discover   Discoverer
	store      *store.Store
	observer   alert.Observer
	virtualOut io.Writer

	reloadReq chan struct{}

	mu     sync.Mutex
	cfg    *config.Config
	alerts []*alert.Alert
	inv    Inventory
	lights []light.Light
}

// Option customises a Runner.
type Option func(*Runner)

// WithLoader replaces config.Load.
func WithLoader(load func(path string) (*config.Config, error)) Option {
	return func(r *Runner) { r.load = load }
}

// WithDiscoverer replaces the default Discoverer.
func WithDiscoverer(d Discoverer) Option {
	return func(r *Runner) { r.discover = d }
}

// WithStore stores the status of every alert after each update.
func WithStore(st *store.Store) Option {
	return func(r *Runner) { r.store = st }
}

// WithObserver attaches o to every alert built by a reload.
func WithObserver(o alert.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithVirtualOutput sets where debug virtual lights, configured or
// synthesized, print their changes.
func WithVirtualOutput(w io.Writer) Option {
	return func(r *Runner) { r.virtualOut = w }
}

// New returns a Runner for the config file at path. No alerts exist until
// the first Reload.
func New(path string, opts ...Option) *Runner {
	r := &Runner{
		path:      path,
		load:      config.Load,
		observer:  alert.Nop{},
		reloadReq: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(r)
	}
	if r.discover == nil {
		r.discover = Discover(r.virtualOut)
	}
	return r
}

// Config returns the configuration of the current alert set, or nil before
// the first successful Reload.
func (r *Runner) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Alerts returns the current alert set in configuration order.
func (r *Runner) Alerts() []*alert.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*alert.Alert(nil), r.alerts...)
}

// Lights returns the light inventory of the current alert set, synthesized
// virtual lights included.
func (r *Runner) Lights() []light.Light {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]light.Light(nil), r.lights...)
}

// Reload rebuilds the alert set from the config file and the live
// inventories. On any error, or a fatal build, the previous set is kept and
// the error returned. Warnings of a partial build are logged, not returned.
func (r *Runner) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.load(r.path)
	if err != nil {
		return r.rejected(err)
	}
	inv, err := r.discover(ctx, cfg)
	if err != nil {
		return r.rejected(fmt.Errorf("runner: discover: %w", err))
	}

	res := alert.Build(ctx, cfg.Alerts, inv.Lights, inv.Jobs, alert.BuildOptions{
		CreateMissingLights: cfg.CreateMissingLights,
		SkipIncomplete:      cfg.SkipIncompleteAlerts,
		Strict:              cfg.Strict,
		Observer:            r.observer,
		VirtualOut:          r.virtualOut,
	})
	if res.Outcome() == alert.OutcomeFatal {
		return r.rejected(res.Err)
	}

	r.cfg, r.alerts, r.inv, r.lights = cfg, res.Alerts, inv, res.Lights
	slog.Info("runner: reloaded",
		"alerts", len(res.Alerts),
		"lights", len(res.Lights),
		"sources", len(inv.Jobs),
		"outcome", res.Outcome().String(),
		"warnings", len(res.Warnings),
	)
	return nil
}

func (r *Runner) rejected(err error) error {
	slog.Error("runner: reload rejected, keeping current alerts",
		"path", r.path,
		"alerts", len(r.alerts),
		"err", err,
	)
	return err
}

// Tick updates every alert once, in configuration order. Errors of one alert
// never stop the others; they are logged and returned joined.
func (r *Runner) Tick(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, a := range r.alerts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		st, err := a.Update(ctx)
		if r.store != nil {
			r.store.Put(st)
		}
		if err != nil {
			slog.Warn("runner: alert update incomplete", "alert", a.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
		}
	}

	if r.inv.Reachability != nil {
		if err := r.inv.Reachability(ctx); err != nil {
			slog.Warn("runner: reachability check failed", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RequestReload asks Run to reload before its next tick. It never blocks;
// requests made while one is pending are merged.
func (r *Runner) RequestReload() {
	select {
	case r.reloadReq <- struct{}{}:
	default:
	}
}

// Run reloads, ticks once and then schedules ticks and reloads at the
// configured intervals until ctx is cancelled. Only the first reload is
// required to succeed.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Reload(ctx); err != nil {
		return err
	}
	poll, reload := r.intervals()
	slog.Info("runner: started", "poll_interval", poll, "reload_interval", reload)

	_ = r.Tick(ctx)

	pollT := time.NewTicker(poll)
	defer pollT.Stop()
	reloadT := time.NewTicker(reload)
	defer reloadT.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("runner: stopped")
			return nil

		case <-pollT.C:
			_ = r.Tick(ctx)

		case <-reloadT.C:
			r.reloadAndReset(ctx, pollT, reloadT, false)

		case <-r.reloadReq:
			r.reloadAndReset(ctx, pollT, reloadT, true)
		}
	}
}

// reloadAndReset reloads and applies changed intervals. A requested reload
// ticks right away so edits show on the lights without waiting a poll.
func (r *Runner) reloadAndReset(ctx context.Context, pollT, reloadT *time.Ticker, tick bool) {
	prevPoll, prevReload := r.intervals()
	if err := r.Reload(ctx); err != nil {
		return
	}
	poll, reload := r.intervals()
	if poll != prevPoll {
		pollT.Reset(poll)
	}
	if reload != prevReload {
		reloadT.Reset(reload)
	}
	if tick {
		_ = r.Tick(ctx)
	}
}

func (r *Runner) intervals() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return config.DefaultPollInterval, config.DefaultReloadInterval
	}
	return r.cfg.PollInterval, r.cfg.ReloadInterval
}
