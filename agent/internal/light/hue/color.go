package hue

import (
	"math"

	"github.com/teamalert/teamalert/agent/internal/light"
)

// whiteCT is the mired color temperature used for white.
const whiteCT = 353

// rgb holds the source RGB triple (0..1) for each non-white color.
var rgb = map[light.Color][3]float64{
	light.Red:    {1, 0, 0},
	light.Green:  {0, 1, 0},
	light.Blue:   {0, 0, 1},
	light.Yellow: {1, 1, 0},
	light.Orange: {1, 0.49, 0},
}

// colorState returns the state body that shows c on a Hue bulb.
func colorState(c light.Color) (map[string]any, bool) {
	if c == light.White {
		return map[string]any{"ct": whiteCT}, true
	}
	v, ok := rgb[c]
	if !ok {
		return nil, false
	}
	x, y := rgbToXY(v[0], v[1], v[2])
	return map[string]any{"xy": []float64{round4(x), round4(y)}}, true
}

// rgbToXY converts linear-ish sRGB (0..1) to CIE 1931 xy using the wide
// gamut D65 conversion published for Hue bulbs.
func rgbToXY(r, g, b float64) (float64, float64) {
	r, g, b = gamma(r), gamma(g), gamma(b)

	X := r*0.664511 + g*0.154324 + b*0.162028
	Y := r*0.283881 + g*0.668433 + b*0.047685
	Z := r*0.000088 + g*0.072310 + b*0.986039

	sum := X + Y + Z
	if sum == 0 {
		return 0, 0
	}
	return X / sum, Y / sum
}

func gamma(v float64) float64 {
	if v > 0.04045 {
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return v / 12.92
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
