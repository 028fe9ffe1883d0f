// Package streamlines turns tractography into an interactive line mesh.
//
// A Widget picks a displayable subset of a tractogram, computes a length
// and a direction color per streamline, builds a segment mesh and keeps
// it in sync with a length threshold slider. Only streamlines longer than
// the threshold are drawn. Moving the slider edits the mesh's line-index
// buffer in place; the vertex buffer is built once per plot.
package streamlines

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"niwidgets/internal/models"
	"niwidgets/pkg/controls"
	"niwidgets/pkg/tractography"
)

// ErrEmptySelection is returned when subsampling leaves nothing to draw
var ErrEmptySelection = errors.New("no streamlines selected for display")

// Renderer is the 3D line-mesh viewer a Widget draws into
type Renderer interface {
	// SetFigure prepares a fresh figure of the given size in pixels
	SetFigure(width, height int) error

	// SetMesh hands over the buffers to draw
	SetMesh(mesh *Mesh) error

	// SetLimits sets the scene extent, the same on all three axes
	SetLimits(lo, hi float64) error

	// LinesChanged signals that the mesh's line-index buffer was edited in place
	LinesChanged(lines []uint32) error
}

// PlotOptions controls how a Widget selects and draws streamlines
type PlotOptions struct {
	// DisplayFraction is the random fraction of streamlines to show, in (0, 1].
	// Ignored when Skip is set.
	DisplayFraction float64

	// Skip keeps every Skip-th streamline instead of a random fraction
	Skip int

	// Percentile of the length distribution used as the initial threshold
	Percentile float64

	// Grayscale draws every streamline mid-gray instead of by direction
	Grayscale bool

	// Width and Height of the figure in pixels
	Width, Height int

	// Seed for the random selection; 0 picks a time based seed
	Seed uint64
}

// DefaultPlotOptions returns the options used when none are given
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		DisplayFraction: 0.1,
		Percentile:      80,
		Width:           600,
		Height:          600,
	}
}

// Widget holds the state of one streamline plot
type Widget struct {
	tractogram *models.Tractogram

	// state of the current plot, replaced on every Plot call
	active     []models.Streamline
	features   *Features
	mesh       *Mesh
	visibility *Visibility
	slider     *controls.FloatSlider
	renderer   Renderer
}

// NewWidget creates a widget over an already loaded tractogram
func NewWidget(t *models.Tractogram) (*Widget, error) {
	if t == nil {
		return nil, errors.New("a tractogram must be given")
	}
	return &Widget{tractogram: t}, nil
}

// Open loads a track file and creates a widget for it
func Open(path string) (*Widget, error) {
	t, err := tractography.Load(path)
	if err != nil {
		return nil, err
	}
	return NewWidget(t)
}

// Plot selects the streamlines to display, draws them into r and sets up
// the threshold slider. Calling Plot again starts over with a new selection.
func (w *Widget) Plot(r Renderer, opts PlotOptions) error {
	active, err := w.selectStreamlines(opts)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return ErrEmptySelection
	}

	features := ComputeFeatures(active, opts.Grayscale)
	mesh, err := BuildMesh(active, features.Colors, nil)
	if err != nil {
		return fmt.Errorf("error building mesh: %w", err)
	}

	slider := controls.NewFloatSlider(Percentile(features.Lengths, opts.Percentile),
		floats.Min(features.Lengths)-1, floats.Max(features.Lengths)-1)
	slider.Description = "threshold"

	// the slider clamps the percentile into its range; start from what it shows
	threshold := slider.Value
	visibility, err := NewVisibility(mesh, features.Lengths, threshold)
	if err != nil {
		return err
	}

	if err := r.SetFigure(opts.Width, opts.Height); err != nil {
		return fmt.Errorf("error creating figure: %w", err)
	}
	if err := r.SetMesh(mesh); err != nil {
		return fmt.Errorf("error setting mesh: %w", err)
	}
	if err := r.SetLimits(mesh.Limits()); err != nil {
		return fmt.Errorf("error setting limits: %w", err)
	}

	slider.Observe(func(t float64) {
		// a slider from an earlier plot no longer drives this widget
		if w.slider != slider {
			return
		}
		if err := w.SetThreshold(t); err != nil {
			log.WithError(err).Error("Failed to update streamline visibility")
		}
	})

	w.active = active
	w.features = features
	w.mesh = mesh
	w.visibility = visibility
	w.slider = slider
	w.renderer = r

	log.WithFields(log.Fields{
		"selected":  len(active),
		"total":     w.tractogram.Len(),
		"vertices":  len(mesh.Vertices),
		"threshold": threshold,
		"shown":     len(visibility.Shown()),
	}).Debug("Plotted streamlines")

	return nil
}

func (w *Widget) selectStreamlines(opts PlotOptions) ([]models.Streamline, error) {
	if opts.Skip > 0 {
		return Stride(w.tractogram.Streamlines, opts.Skip)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return Fraction(w.tractogram.Streamlines, opts.DisplayFraction, rand.NewSource(seed))
}

// SetThreshold updates which streamlines are drawn and notifies the
// renderer if the line buffer changed. It is what the slider calls.
func (w *Widget) SetThreshold(t float64) error {
	if w.visibility == nil {
		return errors.New("widget has not been plotted")
	}

	changed := w.visibility.Apply(t)
	if len(changed) == 0 {
		return nil
	}
	return w.renderer.LinesChanged(w.mesh.Lines)
}

// Threshold returns the current length threshold
func (w *Widget) Threshold() float64 {
	if w.visibility == nil {
		return 0
	}
	return w.visibility.Threshold()
}

// Shown returns the indices into Active of the drawn streamlines
func (w *Widget) Shown() []int {
	if w.visibility == nil {
		return nil
	}
	return w.visibility.Shown()
}

// Slider returns the threshold slider of the current plot
func (w *Widget) Slider() *controls.FloatSlider {
	return w.slider
}

// Mesh returns the mesh of the current plot
func (w *Widget) Mesh() *Mesh {
	return w.mesh
}

// Features returns the lengths and colors of the active streamlines
func (w *Widget) Features() *Features {
	return w.features
}

// Active returns the streamlines selected by the last Plot
func (w *Widget) Active() []models.Streamline {
	return w.active
}
