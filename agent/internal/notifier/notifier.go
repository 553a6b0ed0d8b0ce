package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/teamalert/teamalert/agent/internal/alert"
)

// DefaultTimeout bounds one delivery to one sink.
const DefaultTimeout = 5 * time.Second

// Sink delivers alert change events to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev alert.Event) error
}

var _ alert.Observer = (*Fanout)(nil)

// Fanout is an alert.Observer that hands every event to each sink in turn.
// Delivery errors are logged and never reach the alert.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
}

// NewFanout returns a Fanout over sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, timeout: DefaultTimeout}
}

// Add appends s.
func (f *Fanout) Add(s Sink) { f.sinks = append(f.sinks, s) }

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Notify sends ev to every sink, each bounded by the fanout timeout.
func (f *Fanout) Notify(ctx context.Context, ev alert.Event) {
	for _, s := range f.sinks {
		sctx, cancel := context.WithTimeout(ctx, f.timeout)
		err := s.Send(sctx, ev)
		cancel()
		if err != nil {
			slog.Error("notifier: delivery failed",
				"sink", s.Name(),
				"alert", ev.Alert,
				"err", err,
			)
			continue
		}
		slog.Debug("notifier: delivered", "sink", s.Name(), "alert", ev.Alert, "color", ev.Color)
	}
}

// observerSink adapts an alert.Observer, which cannot fail, to a Sink.
type observerSink struct {
	name string
	o    alert.Observer
}

// FromObserver wraps o as a Sink named name.
func FromObserver(name string, o alert.Observer) Sink {
	return observerSink{name: name, o: o}
}

func (s observerSink) Name() string { return s.name }

func (s observerSink) Send(ctx context.Context, ev alert.Event) error {
	s.o.Notify(ctx, ev)
	return nil
}

// Recorder persists events. *history.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, ev alert.Event) error
}

type journalSink struct{ r Recorder }

// Journal wraps r as a Sink that records transitions only.
func Journal(r Recorder) Sink { return journalSink{r: r} }

func (journalSink) Name() string { return "history" }

func (s journalSink) Send(ctx context.Context, ev alert.Event) error {
	if ev.Initial() {
		return nil
	}
	return s.r.Record(ctx, ev)
}
