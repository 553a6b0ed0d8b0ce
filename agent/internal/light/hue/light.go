package hue

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/teamalert/teamalert/agent/internal/light"
)

// flashAlert makes a bulb breathe for about 15 seconds.
const flashAlert = "lselect"

var _ light.Light = (*Light)(nil)

// Light is one bulb attached to a Bridge.
type Light struct {
	bridge *Bridge
	id     string

	mu         sync.Mutex
	name       string
	on         bool
	brightness int
	reachable  bool
}

// ID returns the bridge-assigned light id.
func (l *Light) ID() string { return l.id }

// Name returns the light name as stored on the bridge.
func (l *Light) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// Reachable reports reachability as of the inventory fetch.
func (l *Light) Reachable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reachable
}

// State returns the on flag and brightness as last read or set.
func (l *Light) State() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on, l.brightness
}

// SetColor switches the bulb on and shows c. The bridge ignores color
// on a bulb that is off, so both go in one request.
func (l *Light) SetColor(ctx context.Context, c light.Color) error {
	state, ok := colorState(c)
	if !ok {
		return fmt.Errorf("hue: light %q: unknown color %q", l.Name(), c)
	}
	state["on"] = true
	if err := l.setState(ctx, state); err != nil {
		return err
	}
	l.mu.Lock()
	l.on = true
	l.mu.Unlock()
	return nil
}

// SetBrightness clamps brightness to 0..254. Zero switches the bulb off;
// the bridge rejects bri on a bulb that is off, so it is only sent when on.
func (l *Light) SetBrightness(ctx context.Context, brightness int) error {
	brightness = light.ClampBrightness(brightness)
	state := map[string]any{"on": brightness > 0}
	if brightness > 0 {
		state["bri"] = brightness
	}
	if err := l.setState(ctx, state); err != nil {
		return err
	}
	l.mu.Lock()
	l.on = brightness > 0
	l.brightness = brightness
	l.mu.Unlock()
	return nil
}

// Flash starts the bulb's long alert cycle.
func (l *Light) Flash(ctx context.Context) error {
	return l.setState(ctx, map[string]any{"alert": flashAlert})
}

// Rename changes the light name on the bridge.
func (l *Light) Rename(ctx context.Context, name string) error {
	if err := l.bridge.do(ctx, http.MethodPut, l.bridge.userPath("/lights/"+l.id), map[string]string{"name": name}, nil); err != nil {
		return fmt.Errorf("hue: rename light %s: %w", l.id, err)
	}
	l.mu.Lock()
	l.name = name
	l.mu.Unlock()
	return nil
}

// Remove deletes the light from the bridge.
func (l *Light) Remove(ctx context.Context) error {
	if err := l.bridge.do(ctx, http.MethodDelete, l.bridge.userPath("/lights/"+l.id), nil, nil); err != nil {
		return fmt.Errorf("hue: remove light %s: %w", l.id, err)
	}
	return nil
}

func (l *Light) setState(ctx context.Context, state map[string]any) error {
	if err := l.bridge.do(ctx, http.MethodPut, l.bridge.userPath("/lights/"+l.id+"/state"), state, nil); err != nil {
		return fmt.Errorf("hue: light %q: set state: %w", l.Name(), err)
	}
	return nil
}
