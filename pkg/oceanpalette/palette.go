// Package oceanpalette provides color schemes for the ocean column and
// its species markers.
package oceanpalette

import (
	"fmt"
	"image/color"
	"strings"
)

// Gradient maps normalized depth [0, 1] to a water color.
type Gradient struct {
	stops []color.RGBA
}

// At returns the water color at normalized depth t, 0 at the surface
// and 1 at the bottom of the column.
func (g Gradient) At(t float64) color.RGBA {
	if t <= 0 {
		return g.stops[0]
	}
	if t >= 1 {
		return g.stops[len(g.stops)-1]
	}

	idx := t * float64(len(g.stops)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(g.stops) {
		upper = len(g.stops) - 1
	}

	frac := idx - float64(lower)
	return interpolate(g.stops[lower], g.stops[upper], frac)
}

// Stops returns the gradient's color stops, surface first.
func (g Gradient) Stops() []color.RGBA {
	out := make([]color.RGBA, len(g.stops))
	copy(out, g.stops)
	return out
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// Abyss fades from sunlit surface water down to lightless deep.
var Abyss = Gradient{
	stops: []color.RGBA{
		hex("#7ec8e3"),
		hex("#2a9df4"),
		hex("#1167b1"),
		hex("#03254c"),
		hex("#020f1e"),
		hex("#000407"),
	},
}

// Twilight stretches the mesopelagic blues before going dark.
var Twilight = Gradient{
	stops: []color.RGBA{
		hex("#9ad1d4"),
		hex("#3c6e71"),
		hex("#284b63"),
		hex("#1f2a44"),
		hex("#120f23"),
	},
}

// Shelf keeps coastal greens for shallow catalogs.
var Shelf = Gradient{
	stops: []color.RGBA{
		hex("#a8dadc"),
		hex("#76c893"),
		hex("#34a0a4"),
		hex("#1a759f"),
		hex("#184e77"),
	},
}

// Lookup returns the gradient registered under name.
func Lookup(name string) (Gradient, error) {
	switch strings.ToLower(name) {
	case "abyss":
		return Abyss, nil
	case "twilight":
		return Twilight, nil
	case "shelf":
		return Shelf, nil
	}
	return Gradient{}, fmt.Errorf("unknown palette %q", name)
}

// StatusColor returns the marker tint for a conservation status.
func StatusColor(status string) color.RGBA {
	switch status {
	case "Endangered":
		return hex("#d64541")
	case "Threatened":
		return hex("#f5a623")
	}
	return hex("#8a9ba8")
}

// hex parses a #rrggbb literal. Palette definitions are the only
// callers, so a bad literal is a programming error.
func hex(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%2x%2x%2x", &r, &g, &b); err != nil {
		panic(fmt.Sprintf("bad palette literal %q", s))
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
