package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"niwidgets/internal/models"
	"niwidgets/pkg/controls"
)

// viewTitles names the plane orthogonal to the x, y and z axis
var viewTitles = [3]string{"Sagittal", "Coronal", "Axial"}

// Options configures a Viewer
type Options struct {
	// Colormaps offered in the picker; empty means the default list, a
	// single entry fixes the colormap
	Colormaps []string

	// ReverseColors starts with the colormap reversed
	ReverseColors bool

	// Guidelines draws a crosshair at the selected coordinates
	Guidelines bool

	// OrientRadiology mirrors views left to right
	OrientRadiology bool

	// AnimationSpeed is the time between frames of the play controls
	AnimationSpeed time.Duration
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		Guidelines:      true,
		OrientRadiology: true,
		AnimationSpeed:  300 * time.Millisecond,
	}
}

// Plane is a 2D cut through a volume, already oriented for display:
// row 0 is the top of the image
type Plane struct {
	Width, Height int
	Values        []float64
	Masked        []bool
}

// Guide is the crosshair position in image pixel coordinates
type Guide struct {
	Col, Row int
}

// View is one rendered orthogonal view
type View struct {
	Title  string
	Image  *image.RGBA
	Guide  *Guide
	Labels [2]string
}

// Viewer shows three orthogonal views of a volume driven by x, y, z and,
// for 4D volumes, t controls
type Viewer struct {
	volume *models.Volume

	// display range of the unmasked data
	vmin, vmax float64

	dims     []string
	controls map[string]*controls.PlaySlider

	ColorPicker  *controls.Dropdown
	ColorReverse *controls.Checkbox
	Guidelines   *controls.Checkbox
	Orientation  *controls.Checkbox

	onRender []func([]View)
}

// NewViewer creates a new orthogonal-view viewer with every control
// centred on the volume
func NewViewer(vol *models.Volume, opts Options) (*Viewer, error) {
	if vol.NDim != 3 && vol.NDim != 4 {
		return nil, fmt.Errorf("input image should be 3D or 4D, got %dD", vol.NDim)
	}
	for _, name := range opts.Colormaps {
		if _, err := LookupColormap(name); err != nil {
			return nil, err
		}
	}

	v := &Viewer{
		volume:       vol,
		dims:         []string{"x", "y", "z", "t"}[:vol.NDim],
		controls:     make(map[string]*controls.PlaySlider),
		ColorPicker:  controls.ColormapDropdown(opts.Colormaps),
		ColorReverse: controls.NewCheckbox("Reverse colormap", opts.ReverseColors),
		Guidelines:   controls.NewCheckbox("Show guides", opts.Guidelines),
		Orientation:  controls.NewCheckbox("Radiological Orientation", opts.OrientRadiology),
	}
	v.vmin, v.vmax = dataRange(vol)

	for i, dim := range v.dims {
		maxval := vol.Shape[i] - 1
		c := controls.NewPlaySlider(strings.ToUpper(dim), maxval/2, 0, maxval, opts.AnimationSpeed)
		c.OnChange(v.refresh)
		v.controls[dim] = c
	}
	v.ColorPicker.OnChange(v.refresh)
	v.ColorReverse.OnChange(v.refresh)
	v.Guidelines.OnChange(v.refresh)
	v.Orientation.OnChange(v.refresh)

	return v, nil
}

func dataRange(vol *models.Volume) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	nx, ny, nz, nt := vol.Shape[0], vol.Shape[1], vol.Shape[2], vol.Shape[3]
	for t := 0; t < nt; t++ {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					val := vol.At(x, y, z, t)
					if vol.Masked(x, y, z) || math.IsNaN(val) {
						continue
					}
					lo, hi = math.Min(lo, val), math.Max(hi, val)
				}
			}
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// Control returns the play slider for dimension "x", "y", "z" or "t"
func (v *Viewer) Control(dim string) *controls.PlaySlider {
	return v.controls[dim]
}

// Indices returns the selected x, y, z and t; t is 0 for 3D volumes
func (v *Viewer) Indices() [4]int {
	var idx [4]int
	for i, dim := range v.dims {
		idx[i] = v.controls[dim].Value
	}
	return idx
}

// OnRender registers fn to receive fresh views whenever a control changes
func (v *Viewer) OnRender(fn func([]View)) {
	v.onRender = append(v.onRender, fn)
}

func (v *Viewer) refresh() {
	if len(v.onRender) == 0 {
		return
	}
	views, err := v.Views()
	if err != nil {
		log.WithError(err).Error("Failed to render views")
		return
	}
	for _, fn := range v.onRender {
		fn(views)
	}
}

// Colormap returns the colormap selected by the picker and reverse checkbox
func (v *Viewer) Colormap() (*Colormap, error) {
	cm, err := LookupColormap(v.ColorPicker.Value)
	if err != nil {
		return nil, err
	}
	if v.ColorReverse.Value {
		cm = cm.Reversed()
	}
	return cm, nil
}

func axisIndex(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return 0, nil
	case "y", "Y":
		return 1, nil
	case "z", "Z":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// otherAxes returns the two axes spanning the plane orthogonal to axis
func otherAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

// Plane cuts the volume orthogonal to axis at position and time point t.
// The cut is rotated by 90 degrees so the second in-plane axis runs
// bottom to top, and mirrored left to right in radiological orientation.
func (v *Viewer) Plane(axis string, position, t int) (*Plane, error) {
	ax, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= v.volume.Shape[ax] {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", position, v.volume.Shape[ax], axis)
	}
	if t < 0 || t >= v.volume.Shape[3] {
		return nil, fmt.Errorf("time point %d outside [0, %d)", t, v.volume.Shape[3])
	}

	a, b := otherAxes(ax)
	p := &Plane{Width: v.volume.Shape[a], Height: v.volume.Shape[b]}
	p.Values = make([]float64, p.Width*p.Height)
	p.Masked = make([]bool, p.Width*p.Height)

	for row := 0; row < p.Height; row++ {
		for col := 0; col < p.Width; col++ {
			var coord [3]int
			coord[ax] = position
			coord[a] = col
			coord[b] = p.Height - 1 - row
			if v.Orientation.Value {
				coord[a] = p.Width - 1 - col
			}

			i := row*p.Width + col
			p.Values[i] = v.volume.At(coord[0], coord[1], coord[2], t)
			p.Masked[i] = v.volume.Masked(coord[0], coord[1], coord[2])
		}
	}

	return p, nil
}

// Render maps a plane through a colormap. Values are scaled from
// [vmin, vmax]; masked and NaN pixels are black.
func Render(p *Plane, cm *Colormap, vmin, vmax float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	span := vmax - vmin

	for row := 0; row < p.Height; row++ {
		for col := 0; col < p.Width; col++ {
			i := row*p.Width + col
			val := p.Values[i]
			if p.Masked[i] || math.IsNaN(val) {
				img.SetRGBA(col, row, color.RGBA{A: 255})
				continue
			}

			norm := 0.0
			if span > 0 {
				norm = (val - vmin) / span
			}
			r, g, b := cm.At(norm).RGB255()
			img.SetRGBA(col, row, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	return img
}

// Guide returns the crosshair position on the view orthogonal to axis,
// marking the selected coordinates of the two in-plane axes
func (v *Viewer) Guide(axis string) (*Guide, error) {
	ax, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}

	a, b := otherAxes(ax)
	idx := v.Indices()
	g := &Guide{
		Col: idx[a],
		Row: v.volume.Shape[b] - 1 - idx[b],
	}
	if v.Orientation.Value {
		g.Col = v.volume.Shape[a] - 1 - idx[a]
	}
	return g, nil
}

// OrientationLabels returns the labels shown left and right of the view
// orthogonal to axis
func OrientationLabels(axis int, radiology bool) [2]string {
	switch {
	case axis == 0 && radiology:
		return [2]string{"F", "P"}
	case axis == 0:
		return [2]string{"P", "F"}
	case radiology:
		return [2]string{"R", "L"}
	}
	return [2]string{"L", "R"}
}

// ExtractSlice renders the cut orthogonal to axis at position, at the
// currently selected time point, with the current colormap
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	p, err := v.Plane(axis, position, v.Indices()[3])
	if err != nil {
		return nil, err
	}
	cm, err := v.Colormap()
	if err != nil {
		return nil, err
	}
	return Render(p, cm, v.vmin, v.vmax), nil
}

// Views renders the three orthogonal views at the selected coordinates
func (v *Viewer) Views() ([]View, error) {
	idx := v.Indices()
	views := make([]View, 3)

	for i, axis := range []string{"x", "y", "z"} {
		img, err := v.ExtractSlice(axis, idx[i])
		if err != nil {
			return nil, err
		}

		view := View{
			Title:  viewTitles[i],
			Image:  img.(*image.RGBA),
			Labels: OrientationLabels(i, v.Orientation.Value),
		}
		if v.Guidelines.Value {
			g, err := v.Guide(axis)
			if err != nil {
				return nil, err
			}
			drawGuide(view.Image, g)
			view.Guide = g
		}
		views[i] = view
	}

	return views, nil
}

func drawGuide(img *image.RGBA, g *Guide) {
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		img.SetRGBA(g.Col, y, gray)
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		img.SetRGBA(x, g.Row, gray)
	}
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified
// axis. progress, if not nil, is called once per saved slice.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string, progress func()) error {
	ax, err := axisIndex(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < v.volume.Shape[ax]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
		if progress != nil {
			progress()
		}
	}

	return nil
}
