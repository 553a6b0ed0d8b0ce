package alert

import (
	"context"
	"time"

	"github.com/teamalert/teamalert/agent/internal/light"
)

// Status is the outcome of one Alert.Update.
type Status struct {
	Alert  string   `json:"alert"`
	Lights []string `json:"lights"`

	OK        bool      `json:"ok"`
	State     State     `json:"state"`
	Directive Directive `json:"directive"`

	// Jobs lists the jobs that took part in aggregation.
	Jobs      []string `json:"jobs"`
	Failing   []string `json:"failing,omitempty"`
	Unclaimed []string `json:"unclaimed,omitempty"`
	// Ignored lists watched jobs excluded by an ignore pattern.
	Ignored []string `json:"ignored,omitempty"`

	// Transitions counts signature changes since the alert was built,
	// the first update included.
	Transitions int       `json:"transitions"`
	Changed     bool      `json:"changed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Event announces a change of (ok, color) on an alert.
type Event struct {
	ID     string   `json:"id"`
	Alert  string   `json:"alert"`
	Lights []string `json:"lights"`

	OK    bool        `json:"ok"`
	State State       `json:"state"`
	Color light.Color `json:"color"`
	// PrevColor is empty for the first update of an alert.
	PrevColor light.Color `json:"prev_color,omitempty"`

	// Flashed is false for the first update, which only logs.
	Flashed   bool      `json:"flashed"`
	Unclaimed []string  `json:"unclaimed,omitempty"`
	At        time.Time `json:"at"`
}

// Initial reports whether ev comes from the first update of an alert. It
// records the starting state and is not a transition.
func (e Event) Initial() bool { return e.PrevColor == "" }

// Observer receives change events. Notify is called synchronously from
// Alert.Update, so implementations should not block for long and must
// handle their own delivery errors.
type Observer interface {
	Notify(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Notify calls f(ctx, ev).
func (f ObserverFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Nop discards events.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Event) {}
