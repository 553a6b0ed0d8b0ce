package light

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// swatch maps each color to the terminal color used when printing changes.
var swatch = map[Color]lipgloss.Color{
	White:  lipgloss.Color("15"),
	Red:    lipgloss.Color("9"),
	Orange: lipgloss.Color("214"),
	Green:  lipgloss.Color("10"),
	Blue:   lipgloss.Color("12"),
	Yellow: lipgloss.Color("11"),
}

var styleName = lipgloss.NewStyle().Bold(true)

// Virtual is a light with no hardware behind it. It always accepts commands
// and remembers its state. With a debug writer set, every state change is
// printed as a colored line.
type Virtual struct {
	name string
	out  io.Writer

	mu         sync.Mutex
	color      Color
	brightness int
	on         bool
	flashes    int
}

// NewVirtual returns a virtual light. out may be nil to stay silent.
func NewVirtual(name string, out io.Writer) *Virtual {
	return &Virtual{name: name, out: out}
}

// Name returns the light name.
func (v *Virtual) Name() string { return v.name }

// SetColor records c.
func (v *Virtual) SetColor(_ context.Context, c Color) error {
	if !c.Valid() {
		return fmt.Errorf("light %q: unknown color %q", v.name, c)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if c != v.color {
		v.print(c, "changed color to %s", c)
	}
	v.color = c
	return nil
}

// SetBrightness records the clamped brightness and switches the light on
// for any non-zero value.
func (v *Virtual) SetBrightness(_ context.Context, brightness int) error {
	brightness = ClampBrightness(brightness)
	v.mu.Lock()
	defer v.mu.Unlock()
	if brightness != v.brightness {
		v.print(v.color, "changed brightness to %d", brightness)
	}
	on := brightness > 0
	if on != v.on {
		if on {
			v.print(v.color, "turned on")
		} else {
			v.print(v.color, "turned off")
		}
	}
	v.brightness = brightness
	v.on = on
	return nil
}

// Flash counts a flash.
func (v *Virtual) Flash(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flashes++
	v.print(v.color, "flashing")
	return nil
}

// State returns the current color, brightness and on flag.
func (v *Virtual) State() (Color, int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.color, v.brightness, v.on
}

// Flashes returns how many times the light has flashed.
func (v *Virtual) Flashes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flashes
}

// print must be called with v.mu held.
func (v *Virtual) print(c Color, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	slog.Debug("light: virtual change", "light", v.name, "change", text)
	if v.out == nil {
		return
	}
	style := lipgloss.NewStyle()
	if fg, ok := swatch[c]; ok {
		style = style.Foreground(fg)
	}
	fmt.Fprintf(v.out, "Light %s: %s\n", styleName.Render("'"+v.name+"'"), style.Render(text))
}
