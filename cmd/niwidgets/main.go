package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"niwidgets/pkg/config"
	"niwidgets/pkg/meshio"
	"niwidgets/pkg/nifti"
	"niwidgets/pkg/streamlines"
	"niwidgets/pkg/surface"
	"niwidgets/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "niwidgets.yaml", "YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	trackFile := flag.String("streamlines", "", "Streamline file (.trk or .tck) to plot")
	thresholds := flag.String("thresholds", "", "Comma separated length thresholds to apply in order")
	objOut := flag.String("out", "streamlines.obj", "OBJ file receiving the visible streamlines")
	volumeFile := flag.String("volume", "", "NIfTI-1 volume (.nii or .nii.gz) to slice")
	slicesDir := flag.String("slices-dir", "slices", "Directory to save extracted slices")
	maskedOut := flag.String("masked-out", "", "Save the background-masked volume to this .nii path")
	surfaceFile := flag.String("surface", "", "Surface mesh (FreeSurfer geometry or .gii) to color")
	overlays := flag.String("overlays", "", "Comma separated overlay files (.annot, .curv, .thickness, .sulc, .gii)")
	overlay := flag.String("overlay", "", "Overlay to show, by file name; defaults to the first")
	surfaceOut := flag.String("surface-out", "surface.obj", "OBJ file receiving the colored surface")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *trackFile == "" && *volumeFile == "" && *surfaceFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel())

	if *trackFile != "" {
		steps, err := parseThresholds(*thresholds)
		if err != nil {
			log.Fatalf("Invalid thresholds: %v", err)
		}
		if err := plotStreamlines(cfg, *trackFile, steps, *objOut); err != nil {
			log.Fatalf("Streamline plot failed: %v", err)
		}
	}

	if *volumeFile != "" {
		if err := sliceVolume(cfg, *volumeFile, *slicesDir, *maskedOut); err != nil {
			log.Fatalf("Volume slicing failed: %v", err)
		}
	}

	if *surfaceFile != "" {
		if err := plotSurface(cfg, *surfaceFile, splitList(*overlays), *overlay, *surfaceOut); err != nil {
			log.Fatalf("Surface plot failed: %v", err)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}

func parseThresholds(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var values []float64
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func plotStreamlines(cfg *config.Config, path string, steps []float64, objOut string) error {
	widget, err := streamlines.Open(path)
	if err != nil {
		return err
	}

	rec := &meshio.Recorder{}
	if err := widget.Plot(rec, cfg.PlotOptions()); err != nil {
		return err
	}

	lengths := widget.Features().Lengths
	mean, std := stat.MeanStdDev(lengths, nil)
	fmt.Println("================================")
	fmt.Printf("Streamlines selected: %d\n", len(widget.Active()))
	fmt.Printf("Vertices: %d, line entries: %d\n", len(rec.Mesh.Vertices), len(rec.Mesh.Lines))
	fmt.Printf("Length: mean %.2f, std %.2f, min %.2f, max %.2f\n", mean, std, floats.Min(lengths), floats.Max(lengths))
	fmt.Printf("Scene limits: [%.2f, %.2f]\n", rec.Lo, rec.Hi)
	fmt.Printf("Initial threshold %.2f: %d shown\n", widget.Threshold(), len(widget.Shown()))

	for _, t := range steps {
		applied := applyThreshold(widget, t)
		fmt.Printf("Threshold %.2f: %d shown\n", applied, len(widget.Shown()))
	}

	f, err := os.Create(objOut)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", objOut, err)
	}
	if err := rec.WriteOBJ(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", objOut, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Visible streamlines saved to: %s\n", objOut)
	return nil
}

// applyThreshold releases the slider at t and returns the threshold in
// effect. The slider clamps t into its range, which is logged.
func applyThreshold(widget *streamlines.Widget, t float64) float64 {
	slider := widget.Slider()
	if t < slider.Min || t > slider.Max {
		log.WithFields(log.Fields{
			"requested": t,
			"min":       slider.Min,
			"max":       slider.Max,
		}).Warn("Threshold outside the slider range, clamping")
	}
	slider.Release(t)
	return widget.Threshold()
}

func plotSurface(cfg *config.Config, path string, overlays []string, selected, objOut string) error {
	widget, err := surface.Open(path, overlays...)
	if err != nil {
		return err
	}

	rec := &meshio.SurfaceRecorder{}
	if err := widget.Plot(rec, cfg.SurfaceOptions()); err != nil {
		return err
	}
	switch names := widget.Overlays(); {
	case selected == "":
	case widget.OverlayPicker != nil:
		if err := widget.OverlayPicker.Select(selected); err != nil {
			return err
		}
	case len(names) == 0 || names[0] != selected:
		return fmt.Errorf("overlay %q was not loaded", selected)
	}

	s := widget.Surface()
	fmt.Println("================================")
	fmt.Printf("Vertices: %d, triangles: %d\n", len(s.Vertices), len(s.Triangles))
	fmt.Printf("Overlays: %s\n", strings.Join(widget.Overlays(), ", "))
	if rec.Triangles != nil {
		fmt.Printf("Triangles drawn: %d\n", len(rec.Triangles))
	}

	f, err := os.Create(objOut)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", objOut, err)
	}
	if err := rec.WriteOBJ(f); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", objOut, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Colored surface saved to: %s\n", objOut)
	return nil
}

func sliceVolume(cfg *config.Config, path, slicesDir, maskedOut string) error {
	vol, err := nifti.Load(path)
	if err != nil {
		return err
	}

	if cfg.Volume.MaskBackground {
		visualization.MaskBackground(vol)
		if maskedOut != "" {
			if err := nifti.Save(vol, maskedOut); err != nil {
				return err
			}
			fmt.Printf("Masked volume saved to: %s\n", maskedOut)
		}
	}

	viewer, err := visualization.NewViewer(vol, cfg.ViewerOptions())
	if err != nil {
		return err
	}

	fmt.Printf("Volume shape: %v (%dD)\n", vol.Shape, vol.NDim)
	for i, axis := range []string{"x", "y", "z"} {
		axisDir := filepath.Join(slicesDir, axis)
		fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)

		bar := progressbar.Default(int64(vol.Shape[i]), axis)
		err := viewer.SaveSliceSequence(axis, axisDir, func() {
			bar.Add(1)
		})
		bar.Close()
		if err != nil {
			log.WithError(err).WithField("axis", axis).Warn("Failed to save slices")
		}
	}

	fmt.Println("Slice extraction completed!")
	return nil
}
