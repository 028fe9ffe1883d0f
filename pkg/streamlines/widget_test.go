package streamlines

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"niwidgets/internal/models"
)

// recordingRenderer remembers what the widget asked it to do
type recordingRenderer struct {
	width, height int
	mesh          *Mesh
	lo, hi        float64
	updates       int
	failLines     bool
}

func (r *recordingRenderer) SetFigure(width, height int) error {
	r.width, r.height = width, height
	return nil
}

func (r *recordingRenderer) SetMesh(mesh *Mesh) error {
	r.mesh = mesh
	return nil
}

func (r *recordingRenderer) SetLimits(lo, hi float64) error {
	r.lo, r.hi = lo, hi
	return nil
}

func (r *recordingRenderer) LinesChanged(lines []uint32) error {
	if r.failLines {
		return errors.New("renderer gone")
	}
	r.updates++
	return nil
}

func newTestWidget(t *testing.T) *Widget {
	t.Helper()
	w, err := NewWidget(&models.Tractogram{Streamlines: collectionOfLengths(5, 10, 15)})
	if err != nil {
		t.Fatalf("Failed to create widget: %v", err)
	}
	return w
}

// TestWidgetPlot verifies the initial render and slider setup
func TestWidgetPlot(t *testing.T) {
	w := newTestWidget(t)
	r := &recordingRenderer{}

	opts := DefaultPlotOptions()
	opts.Skip = 1
	if err := w.Plot(r, opts); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	if r.width != 600 || r.height != 600 {
		t.Errorf("Expected a 600x600 figure, got %dx%d", r.width, r.height)
	}
	if r.mesh != w.Mesh() {
		t.Error("Expected the renderer to receive the widget mesh")
	}
	if r.lo != 0 || r.hi != 15 {
		t.Errorf("Expected limits [0, 15], got [%f, %f]", r.lo, r.hi)
	}
	if !reflect.DeepEqual(w.Shown(), []int{2}) {
		t.Errorf("Expected only the longest streamline shown, got %v", w.Shown())
	}

	s := w.Slider()
	if s.ContinuousUpdate {
		t.Error("Expected continuous updates to be disabled")
	}
	if s.Min < 3.999 || s.Min > 4.001 || s.Max < 13.999 || s.Max > 14.001 {
		t.Errorf("Expected slider range [4, 14], got [%f, %f]", s.Min, s.Max)
	}
	if s.Value < 12.999 || s.Value > 13.001 {
		t.Errorf("Expected slider to start at 13, got %f", s.Value)
	}
}

// TestWidgetSlider verifies slider releases drive the visibility updates
func TestWidgetSlider(t *testing.T) {
	w := newTestWidget(t)
	r := &recordingRenderer{}
	opts := DefaultPlotOptions()
	opts.Skip = 1
	if err := w.Plot(r, opts); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	s := w.Slider()
	s.Drag(8)
	if r.updates != 0 || w.Threshold() == 8 {
		t.Error("Dragging must not update the plot")
	}

	s.Release(8)
	if r.updates != 1 {
		t.Errorf("Expected 1 update, got %d", r.updates)
	}
	if !reflect.DeepEqual(w.Shown(), []int{1, 2}) {
		t.Errorf("Expected streamlines 1 and 2 shown, got %v", w.Shown())
	}

	// no visibility change, no notification
	s.Release(9)
	if r.updates != 1 {
		t.Errorf("Expected no update for an unchanged shown set, got %d", r.updates)
	}
	if w.Threshold() != 9 {
		t.Errorf("Expected threshold 9, got %f", w.Threshold())
	}

	s.Release(12)
	if r.updates != 2 || !reflect.DeepEqual(w.Shown(), []int{2}) {
		t.Errorf("Expected only streamline 2 after raising to 12, got %v", w.Shown())
	}
}

// TestWidgetPlotFullPercentile verifies the initial threshold is the value
// the slider can show, so the longest streamline stays visible
func TestWidgetPlotFullPercentile(t *testing.T) {
	w := newTestWidget(t)
	r := &recordingRenderer{}
	opts := DefaultPlotOptions()
	opts.Skip = 1
	opts.Percentile = 100
	if err := w.Plot(r, opts); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	if w.Threshold() != w.Slider().Value {
		t.Errorf("Expected threshold %f to match the slider, got %f", w.Slider().Value, w.Threshold())
	}
	if w.Threshold() < 13.999 || w.Threshold() > 14.001 {
		t.Errorf("Expected threshold 14, got %f", w.Threshold())
	}
	if !reflect.DeepEqual(w.Shown(), []int{2}) {
		t.Errorf("Expected the longest streamline shown, got %v", w.Shown())
	}
}

// TestWidgetReplot verifies a slider from an earlier plot is ignored
func TestWidgetReplot(t *testing.T) {
	w := newTestWidget(t)
	r := &recordingRenderer{}
	opts := DefaultPlotOptions()
	opts.Skip = 1
	if err := w.Plot(r, opts); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	old := w.Slider()

	if err := w.Plot(r, opts); err != nil {
		t.Fatalf("Second plot failed: %v", err)
	}
	if w.Slider() == old {
		t.Fatal("Expected a new slider for the second plot")
	}

	old.Release(old.Min)
	if r.updates != 0 {
		t.Errorf("Expected no update from the old slider, got %d", r.updates)
	}
	if !reflect.DeepEqual(w.Shown(), []int{2}) {
		t.Errorf("Expected the shown set untouched, got %v", w.Shown())
	}

	w.Slider().Release(w.Slider().Min)
	if r.updates != 1 || len(w.Shown()) != 3 {
		t.Errorf("Expected the new slider to show all streamlines, got %v after %d updates", w.Shown(), r.updates)
	}
}

// TestWidgetPlotInvalidFraction verifies no state is built for bad fractions
func TestWidgetPlotInvalidFraction(t *testing.T) {
	for _, f := range []float64{0, 1.5} {
		w := newTestWidget(t)
		r := &recordingRenderer{}

		opts := DefaultPlotOptions()
		opts.DisplayFraction = f
		err := w.Plot(r, opts)
		if !errors.Is(err, ErrInvalidDisplayFraction) {
			t.Errorf("Expected ErrInvalidDisplayFraction for %v, got %v", f, err)
		}
		if w.Mesh() != nil || w.Active() != nil || r.mesh != nil {
			t.Errorf("Expected no state after failed plot with fraction %v", f)
		}
	}
}

// TestWidgetPlotFraction verifies the random selection size
func TestWidgetPlotFraction(t *testing.T) {
	c := make([]models.Streamline, 20)
	for i := range c {
		c[i] = straightLine(float64(i+1), 2)
	}
	w, _ := NewWidget(&models.Tractogram{Streamlines: c})

	opts := DefaultPlotOptions()
	opts.DisplayFraction = 0.25
	opts.Seed = 7
	if err := w.Plot(&recordingRenderer{}, opts); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	if len(w.Active()) != 5 {
		t.Errorf("Expected 5 streamlines, got %d", len(w.Active()))
	}

	opts.DisplayFraction = 0.01
	if err := w.Plot(&recordingRenderer{}, opts); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("Expected ErrEmptySelection, got %v", err)
	}
}

// TestWidgetSetThresholdBeforePlot verifies the unplotted widget reports an error
func TestWidgetSetThresholdBeforePlot(t *testing.T) {
	w := newTestWidget(t)
	if err := w.SetThreshold(3); err == nil {
		t.Error("Expected error before Plot, got nil")
	}

	r := &recordingRenderer{failLines: true}
	opts := DefaultPlotOptions()
	opts.Skip = 1
	if err := w.Plot(r, opts); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	if err := w.SetThreshold(3); err == nil {
		t.Error("Expected renderer error to propagate, got nil")
	}
}

// TestOpenMissingFile verifies loader errors surface before plotting
func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.trk"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}
