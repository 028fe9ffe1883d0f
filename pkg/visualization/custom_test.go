package visualization

import (
	"errors"
	"reflect"
	"testing"

	"niwidgets/internal/models"
	"niwidgets/pkg/controls"
)

func recordingPlot(params ...string) (PlotFunc, *[]map[string]any) {
	var calls []map[string]any
	return PlotFunc{
		Params: params,
		Plot: func(vol *models.Volume, kwargs map[string]any) error {
			calls = append(calls, kwargs)
			return nil
		},
	}, &calls
}

// TestCustomPlotterCutCoords verifies sliders are added and folded into cut_coords
func TestCustomPlotterCutCoords(t *testing.T) {
	fn, calls := recordingPlot("cut_coords", "cmap", "display_mode")
	p, err := NewCustomPlotter(models.NewVolume(2, 2, 2, 1), fn, map[string]any{"display_mode": "xz"}, nil)
	if err != nil {
		t.Fatalf("Failed to create plotter: %v", err)
	}

	for _, label := range []string{"x", "y", "z"} {
		s, ok := p.Controls()[label].(*controls.IntSlider)
		if !ok {
			t.Fatalf("Expected an int slider for %s", label)
		}
		if s.Min != -90 || s.Max != 90 || s.Value != 0 {
			t.Errorf("Unexpected %s slider range [%d, %d] at %d", label, s.Min, s.Max, s.Value)
		}
	}

	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	p.Controls()["x"].(*controls.IntSlider).Release(10)

	if len(*calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(*calls))
	}
	want := map[string]any{
		"display_mode": "xz",
		"cmap":         "viridis",
		"cut_coords":   []float64{10, 0},
	}
	if !reflect.DeepEqual((*calls)[1], want) {
		t.Errorf("Expected %v, got %v", want, (*calls)[1])
	}
}

// TestCustomPlotterOrthoMode verifies all three coordinates without an xyz display mode
func TestCustomPlotterOrthoMode(t *testing.T) {
	fn, _ := recordingPlot("cut_coords")
	p, _ := NewCustomPlotter(models.NewVolume(2, 2, 2, 1), fn, map[string]any{"y": 4}, []string{"gray"})

	got := p.Reconcile(map[string]any{"x": 1, "y": 4, "z": -3, "display_mode": "ortho", "colormap": "gray"})
	want := map[string]any{"display_mode": "ortho", "cut_coords": []float64{1, 4, -3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if p.Colormap != "gray" {
		t.Errorf("Expected colormap kept on the plotter, got %q", p.Colormap)
	}

	if _, ok := p.Controls()["y"].(int); !ok {
		t.Error("Expected a given y to be kept instead of adding a slider")
	}
}

// TestCustomPlotterNoCutCoords verifies functions without cut_coords get no sliders
func TestCustomPlotterNoCutCoords(t *testing.T) {
	fn, calls := recordingPlot("title")
	p, _ := NewCustomPlotter(models.NewVolume(2, 2, 2, 1), fn, map[string]any{"title": "brain"}, nil)

	if _, ok := p.Controls()["x"]; ok {
		t.Error("Expected no x slider")
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual((*calls)[0], map[string]any{"title": "brain"}) {
		t.Errorf("Unexpected kwargs %v", (*calls)[0])
	}

	fn, _ = recordingPlot("cut_coords")
	p, _ = NewCustomPlotter(models.NewVolume(2, 2, 2, 1), fn, map[string]any{"cut_coords": []float64{0, 0, 0}}, nil)
	if _, ok := p.Controls()["x"]; ok {
		t.Error("Expected no x slider when cut_coords are given")
	}
}

// TestCustomPlotterErrors verifies plot errors reach the caller
func TestCustomPlotterErrors(t *testing.T) {
	if _, err := NewCustomPlotter(models.NewVolume(2, 2, 2, 1), PlotFunc{}, nil, nil); err == nil {
		t.Error("Expected error without a plot function, got nil")
	}

	boom := errors.New("boom")
	fn := PlotFunc{Plot: func(*models.Volume, map[string]any) error { return boom }}
	p, _ := NewCustomPlotter(models.NewVolume(2, 2, 2, 1), fn, nil, nil)
	if err := p.Run(); !errors.Is(err, boom) {
		t.Errorf("Expected plot error, got %v", err)
	}
}

// TestLookupColormap verifies names, reversal and interpolation
func TestLookupColormap(t *testing.T) {
	for _, name := range controls.DefaultColormaps {
		if _, err := LookupColormap(name); err != nil {
			t.Errorf("Default colormap %s missing: %v", name, err)
		}
	}

	if _, err := LookupColormap("jet"); err == nil {
		t.Error("Expected error for unknown colormap, got nil")
	}

	rev, err := LookupColormap("gray_r")
	if err != nil {
		t.Fatalf("Failed to look up reversed colormap: %v", err)
	}
	if r, g, b := rev.At(0).RGB255(); r != 255 || g != 255 || b != 255 {
		t.Errorf("Expected white at 0 of gray_r, got %d %d %d", r, g, b)
	}
	if rev.Reversed().Name != "gray" {
		t.Errorf("Expected double reversal to give gray, got %s", rev.Reversed().Name)
	}

	gray, _ := LookupColormap("gray")
	if r, _, _ := gray.At(0.5).RGB255(); r < 127 || r > 128 {
		t.Errorf("Expected mid gray at 0.5, got %d", r)
	}
	if r, _, _ := gray.At(7).RGB255(); r != 255 {
		t.Errorf("Expected values above 1 to clamp to white, got %d", r)
	}
}
