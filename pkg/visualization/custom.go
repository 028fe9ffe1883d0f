package visualization

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"niwidgets/internal/models"
	"niwidgets/pkg/controls"
)

// PlotFunc is a user supplied plotting function together with the keyword
// arguments it accepts. Plot receives the volume and the resolved keyword
// arguments for every redraw.
type PlotFunc struct {
	Params []string
	Plot   func(vol *models.Volume, kwargs map[string]any) error
}

// Accepts reports whether the function takes the keyword argument name
func (f PlotFunc) Accepts(name string) bool {
	return slices.Contains(f.Params, name)
}

// CustomPlotter drives a PlotFunc from widget controls. Cut coordinates
// get x, y and z sliders when the function takes "cut_coords" and none
// were given, and the colormap picker is handed over as "cmap" when the
// function takes it.
type CustomPlotter struct {
	volume *models.Volume
	fn     PlotFunc
	kwargs map[string]any

	// Colormap is the last picked colormap when the function has no
	// colormap argument of its own
	Colormap string
}

// NewCustomPlotter sets up the controls for fn. kwargs may contain fixed
// values or controls; colormaps configures the colormap picker like
// Options.Colormaps does.
func NewCustomPlotter(vol *models.Volume, fn PlotFunc, kwargs map[string]any, colormaps []string) (*CustomPlotter, error) {
	if fn.Plot == nil {
		return nil, errors.New("a plotting function must be given")
	}

	kw := make(map[string]any, len(kwargs)+4)
	for k, val := range kwargs {
		kw[k] = val
	}
	kw["colormap"] = controls.ColormapDropdown(colormaps)

	if _, given := kw["cut_coords"]; fn.Accepts("cut_coords") && !given {
		for _, label := range []string{"x", "y", "z"} {
			if _, ok := kw[label]; !ok {
				// cut_coords are in MNI millimetres
				kw[label] = controls.NewIntSlider(0, -90, 90)
			}
		}
	}

	return &CustomPlotter{volume: vol, fn: fn, kwargs: kw}, nil
}

// Controls returns the keyword arguments including the added controls
func (p *CustomPlotter) Controls() map[string]any {
	return p.kwargs
}

// Run draws once and redraws on every control change
func (p *CustomPlotter) Run() error {
	return controls.Interact(p.call, p.kwargs, func(err error) {
		log.WithError(err).Error("Custom plot failed")
	})
}

func (p *CustomPlotter) call(kwargs map[string]any) error {
	return p.fn.Plot(p.volume, p.Reconcile(kwargs))
}

// Reconcile rewrites resolved keyword arguments into the form the plotting
// function expects. The input map is modified and returned.
func (p *CustomPlotter) Reconcile(kwargs map[string]any) map[string]any {
	if cmap, ok := kwargs["colormap"]; ok {
		delete(kwargs, "colormap")
		if p.fn.Accepts("cmap") {
			kwargs["cmap"] = cmap
		} else if name, ok := cmap.(string); ok {
			p.Colormap = name
		}
	}

	if _, ok := kwargs["x"]; ok && p.fn.Accepts("cut_coords") {
		labels := []string{"x", "y", "z"}
		if mode, ok := kwargs["display_mode"].(string); ok && strings.ContainsAny(mode, "xyz") {
			labels = slices.DeleteFunc(labels, func(l string) bool {
				return !strings.Contains(mode, l)
			})
		}

		coords := make([]float64, 0, len(labels))
		for _, l := range labels {
			c, err := toFloat(kwargs[l])
			if err != nil {
				log.WithError(err).WithField("label", l).Warn("Skipping cut coordinate")
				continue
			}
			coords = append(coords, c)
		}
		kwargs["cut_coords"] = coords

		for _, l := range []string{"x", "y", "z"} {
			delete(kwargs, l)
		}
	}

	return kwargs
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	}
	return 0, fmt.Errorf("cut coordinate %v is not a number", v)
}
