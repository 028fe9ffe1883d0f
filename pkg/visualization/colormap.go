package visualization

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Colormap maps values in [0, 1] to colors by linear interpolation between stops
type Colormap struct {
	Name  string
	stops []colorStop
}

type colorStop struct {
	pos   float64
	color colorful.Color
}

// mustParseHex parses a hex color literal, panicking on malformed input
func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("mustParseHex: " + err.Error())
	}
	return c
}

func evenStops(hexes ...string) []colorStop {
	stops := make([]colorStop, len(hexes))
	for i, h := range hexes {
		stops[i] = colorStop{
			pos:   float64(i) / float64(len(hexes)-1),
			color: mustParseHex(h),
		}
	}
	return stops
}

// colormaps approximates the matplotlib maps offered in the colormap picker
var colormaps = map[string][]colorStop{
	"viridis": evenStops("#440154", "#482878", "#3e4989", "#31688e", "#26828e",
		"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"),
	"summer":  evenStops("#008066", "#ffff66"),
	"gray":    evenStops("#000000", "#ffffff"),
	"Greys":   evenStops("#ffffff", "#d9d9d9", "#969696", "#525252", "#000000"),
	"Blues":   evenStops("#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"),
	"Greens":  evenStops("#f7fcf5", "#c7e9c0", "#74c476", "#238b45", "#00441b"),
	"Oranges": evenStops("#fff5eb", "#fdd0a2", "#fd8d3c", "#d94801", "#7f2704"),
	"Purples": evenStops("#fcfbfd", "#dadaeb", "#9e9ac8", "#6a51a3", "#3f007d"),
	"Reds":    evenStops("#fff5f0", "#fcbba1", "#fb6a4a", "#cb181d", "#67000d"),
	"nipy_spectral": evenStops("#000000", "#780088", "#0000dd", "#0099dd", "#00aa88",
		"#00bb00", "#00ff00", "#ccf800", "#ff9900", "#dd0000", "#cccccc"),
}

// ColormapNames returns the names of all known colormaps, sorted
func ColormapNames() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupColormap returns the named colormap. A "_r" suffix reverses it.
func LookupColormap(name string) (*Colormap, error) {
	base, reversed := strings.CutSuffix(name, "_r")
	stops, ok := colormaps[base]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}

	cm := &Colormap{Name: base, stops: stops}
	if reversed {
		cm = cm.Reversed()
	}
	return cm, nil
}

// Reversed returns the colormap running from its last color to its first
func (c *Colormap) Reversed() *Colormap {
	stops := make([]colorStop, len(c.stops))
	for i, s := range c.stops {
		stops[len(stops)-1-i] = colorStop{pos: 1 - s.pos, color: s.color}
	}

	name := c.Name + "_r"
	if base, ok := strings.CutSuffix(c.Name, "_r"); ok {
		name = base
	}
	return &Colormap{Name: name, stops: stops}
}

// At returns the color for v, clamped into [0, 1]
func (c *Colormap) At(v float64) colorful.Color {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(0, math.Min(1, v))

	i := sort.Search(len(c.stops), func(i int) bool { return c.stops[i].pos >= v })
	if i == 0 {
		return c.stops[0].color
	}
	if i == len(c.stops) {
		return c.stops[len(c.stops)-1].color
	}

	lo, hi := c.stops[i-1], c.stops[i]
	t := (v - lo.pos) / (hi.pos - lo.pos)
	return lo.color.BlendRgb(hi.color, t).Clamped()
}
