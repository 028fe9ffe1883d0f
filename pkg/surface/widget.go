// Package surface shows cortical surface meshes with per-vertex overlays.
//
// A Widget draws a triangle mesh once and recolors its vertices whenever
// the colormap or the selected overlay changes. Overlay values are
// normalised to [0, 1] over their own range before the colormap lookup.
package surface

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"niwidgets/internal/models"
	"niwidgets/pkg/controls"
	"niwidgets/pkg/visualization"
)

// Overlay is a named per-vertex value array
type Overlay struct {
	Name   string
	Values []float64
}

// Renderer is the 3D triangle-mesh viewer a Widget draws into
type Renderer interface {
	// SetFigure prepares a fresh figure of the given size in pixels
	SetFigure(width, height int) error

	// SetLimits sets the x, y and z extent of the scene
	SetLimits(limits [3][2]float64) error

	// SetSurface hands over the mesh to draw
	SetSurface(surface *models.Surface) error

	// SetColors sets one color per vertex
	SetColors(colors []colorful.Color) error

	// SetTriangles replaces the faces that are drawn
	SetTriangles(triangles [][3]int) error
}

// PlotOptions controls how a Widget draws a surface
type PlotOptions struct {
	// Colormaps offered in the picker; empty means the default list, a
	// single entry fixes the colormap
	Colormaps []string

	// Width and Height of the figure in pixels
	Width, Height int

	// Limits of the x, y and z axes; all zero fits the mesh
	Limits [3][2]float64

	// ShowZeroes keeps faces touching vertices where the overlay is zero
	ShowZeroes bool
}

// DefaultPlotOptions returns the options used when none are given
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Width:      600,
		Height:     600,
		Limits:     [3][2]float64{{-100, 100}, {-100, 100}, {-100, 100}},
		ShowZeroes: true,
	}
}

// Validate checks that every triangle references existing vertices
func Validate(s *models.Surface) error {
	for i, t := range s.Triangles {
		for _, idx := range t {
			if idx < 0 || idx >= len(s.Vertices) {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidFile, i, idx, len(s.Vertices))
			}
		}
	}
	return nil
}

// Widget holds a surface, its overlays and the controls of the current plot
type Widget struct {
	surface  *models.Surface
	overlays []Overlay
	index    map[string]int

	// ColorPicker selects the colormap
	ColorPicker *controls.Dropdown

	// OverlayPicker selects the overlay; nil with fewer than two overlays
	OverlayPicker *controls.Dropdown

	renderer Renderer
	opts     PlotOptions
	drawn    bool
}

// NewWidget creates a widget for a surface. Every overlay needs one value
// per vertex and a unique name.
func NewWidget(s *models.Surface, overlays ...Overlay) (*Widget, error) {
	if s == nil {
		return nil, errors.New("a surface must be given")
	}
	if err := Validate(s); err != nil {
		return nil, err
	}

	w := &Widget{surface: s, index: make(map[string]int, len(overlays))}
	for _, o := range overlays {
		if len(o.Values) != len(s.Vertices) {
			return nil, fmt.Errorf("overlay %q has %d values for %d vertices", o.Name, len(o.Values), len(s.Vertices))
		}
		if _, dup := w.index[o.Name]; dup || o.Name == "" {
			return nil, fmt.Errorf("overlay name %q is empty or used twice", o.Name)
		}
		w.index[o.Name] = len(w.overlays)
		w.overlays = append(w.overlays, o)
	}
	return w, nil
}

// Open loads a surface and overlay files and creates a widget for them.
// Overlays are named after their file.
func Open(meshPath string, overlayPaths ...string) (*Widget, error) {
	s, err := LoadMesh(meshPath)
	if err != nil {
		return nil, err
	}

	overlays := make([]Overlay, 0, len(overlayPaths))
	for _, path := range overlayPaths {
		o, err := LoadOverlay(path)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, *o)
	}
	return NewWidget(s, overlays...)
}

// Surface returns the mesh
func (w *Widget) Surface() *models.Surface {
	return w.surface
}

// Overlays returns the overlay names in the order they were given
func (w *Widget) Overlays() []string {
	names := make([]string, len(w.overlays))
	for i, o := range w.overlays {
		names[i] = o.Name
	}
	return names
}

// Plot draws the surface into r and colors it by the first overlay. The
// colormap picker, and with two or more overlays the overlay picker,
// redraw the colors when changed.
func (w *Widget) Plot(r Renderer, opts PlotOptions) error {
	for _, name := range opts.Colormaps {
		if _, err := visualization.LookupColormap(name); err != nil {
			return err
		}
	}

	picker := controls.ColormapDropdown(opts.Colormaps)
	kwargs := map[string]any{"colormap": picker}

	w.OverlayPicker = nil
	switch len(w.overlays) {
	case 0:
		kwargs["overlay"] = controls.Fixed{Value: ""}
	case 1:
		kwargs["overlay"] = controls.Fixed{Value: w.overlays[0].Name}
	default:
		d, err := controls.NewDropdown("Overlay:", w.Overlays())
		if err != nil {
			return err
		}
		w.OverlayPicker = d
		kwargs["overlay"] = d
	}

	w.ColorPicker = picker
	w.renderer = r
	w.opts = opts
	w.drawn = false

	return controls.Interact(func(kw map[string]any) error {
		// controls from an earlier plot no longer drive this widget
		if w.ColorPicker != picker {
			return nil
		}
		return w.draw(kw)
	}, kwargs, func(err error) {
		log.WithError(err).Error("Failed to redraw surface")
	})
}

func (w *Widget) draw(kwargs map[string]any) error {
	if !w.drawn {
		if err := w.initFigure(); err != nil {
			return err
		}
		w.drawn = true
	}

	name, _ := kwargs["overlay"].(string)
	if name == "" {
		return nil
	}
	cmap, _ := kwargs["colormap"].(string)

	colors, err := w.Colors(name, cmap)
	if err != nil {
		return err
	}
	if err := w.renderer.SetColors(colors); err != nil {
		return fmt.Errorf("error setting colors: %w", err)
	}

	if !w.opts.ShowZeroes {
		keep, _ := ZMask(w.surface, w.overlays[w.index[name]].Values)
		if err := w.renderer.SetTriangles(Triangles(w.surface, keep)); err != nil {
			return fmt.Errorf("error setting triangles: %w", err)
		}
	}

	log.WithFields(log.Fields{
		"overlay":  name,
		"colormap": cmap,
	}).Debug("Colored surface")
	return nil
}

// initFigure draws the bare white surface
func (w *Widget) initFigure() error {
	if err := w.renderer.SetFigure(w.opts.Width, w.opts.Height); err != nil {
		return fmt.Errorf("error creating figure: %w", err)
	}

	limits := w.opts.Limits
	if limits == ([3][2]float64{}) {
		limits = Limits(w.surface)
	}
	if err := w.renderer.SetLimits(limits); err != nil {
		return fmt.Errorf("error setting limits: %w", err)
	}
	if err := w.renderer.SetSurface(w.surface); err != nil {
		return fmt.Errorf("error setting surface: %w", err)
	}

	white := make([]colorful.Color, len(w.surface.Vertices))
	for i := range white {
		white[i] = colorful.Color{R: 1, G: 1, B: 1}
	}
	return w.renderer.SetColors(white)
}

// Colors maps the named overlay through the named colormap
func (w *Widget) Colors(overlay, colormap string) ([]colorful.Color, error) {
	i, ok := w.index[overlay]
	if !ok {
		return nil, fmt.Errorf("unknown overlay %q", overlay)
	}
	cm, err := visualization.LookupColormap(colormap)
	if err != nil {
		return nil, err
	}
	return VertexColors(w.overlays[i].Values, cm), nil
}

// Normalize rescales values to [0, 1] by their minimum and maximum. A
// constant array is only shifted by its minimum, which maps it to 0.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := floats.Min(values), floats.Max(values)
	for i, v := range values {
		out[i] = v - lo
	}
	if hi-lo > 0 {
		floats.Scale(1/(hi-lo), out)
	}
	return out
}

// VertexColors normalises values and looks them up in a colormap
func VertexColors(values []float64, cm *visualization.Colormap) []colorful.Color {
	norm := Normalize(values)
	colors := make([]colorful.Color, len(norm))
	for i, v := range norm {
		colors[i] = cm.At(v)
	}
	return colors
}

// ZMask splits the faces by whether they touch a vertex where mask is
// zero, such as the medial wall. keep and kill are parallel to the
// surface's triangles and complement each other.
func ZMask(s *models.Surface, mask []float64) (keep, kill []bool) {
	keep = make([]bool, len(s.Triangles))
	kill = make([]bool, len(s.Triangles))
	for i, t := range s.Triangles {
		for _, idx := range t {
			if mask[idx] == 0 {
				kill[i] = true
				break
			}
		}
		keep[i] = !kill[i]
	}
	return keep, kill
}

// Triangles returns the faces whose entry in keep is true
func Triangles(s *models.Surface, keep []bool) [][3]int {
	out := make([][3]int, 0, len(s.Triangles))
	for i, t := range s.Triangles {
		if keep[i] {
			out = append(out, t)
		}
	}
	return out
}

// Limits returns the per-axis extent of the surface's vertices
func Limits(s *models.Surface) [3][2]float64 {
	if len(s.Vertices) == 0 {
		return [3][2]float64{}
	}

	lo, hi := s.Vertices[0], s.Vertices[0]
	for _, v := range s.Vertices[1:] {
		lo = r3.Vec{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = r3.Vec{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return [3][2]float64{{lo.X, hi.X}, {lo.Y, hi.Y}, {lo.Z, hi.Z}}
}
