package light

import (
	"context"
	"errors"
	"fmt"
)

// MaxBrightness is the highest brightness a light accepts.
const MaxBrightness = 254

// ErrNotFound is returned when a light name is not in an inventory.
var ErrNotFound = errors.New("light not found")

// Color is one of the named colors every light can show.
type Color string

const (
	White  Color = "white"
	Red    Color = "red"
	Orange Color = "orange"
	Green  Color = "green"
	Blue   Color = "blue"
	Yellow Color = "yellow"
)

// Colors lists every valid Color.
var Colors = []Color{White, Red, Orange, Green, Blue, Yellow}

// Valid reports whether c is a known color.
func (c Color) Valid() bool {
	for _, k := range Colors {
		if c == k {
			return true
		}
	}
	return false
}

// Light is a target that can show a color at a brightness and flash.
// Implementations resolve transient I/O problems themselves (bounded
// retries); a returned error means the light could not be driven.
type Light interface {
	Name() string
	SetColor(ctx context.Context, c Color) error
	// SetBrightness accepts 0..MaxBrightness; 0 turns the light off.
	SetBrightness(ctx context.Context, brightness int) error
	Flash(ctx context.Context) error
}

// ClampBrightness restricts v to 0..MaxBrightness.
func ClampBrightness(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxBrightness {
		return MaxBrightness
	}
	return v
}

// Find returns the first light named name.
func Find(lights []Light, name string) (Light, error) {
	for _, l := range lights {
		if l.Name() == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Names returns the names of lights in order.
func Names(lights []Light) []string {
	out := make([]string, 0, len(lights))
	for _, l := range lights {
		out = append(out, l.Name())
	}
	return out
}
