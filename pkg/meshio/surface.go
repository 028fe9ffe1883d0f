package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/lucasb-eyer/go-colorful"

	"niwidgets/internal/models"
	"niwidgets/pkg/surface"
)

// WriteSurfaceOBJ writes a triangle mesh as Wavefront OBJ with one color
// per vertex. triangles selects the faces to write; nil writes them all.
func WriteSurfaceOBJ(w io.Writer, s *models.Surface, colors []colorful.Color, triangles [][3]int) error {
	if len(colors) != len(s.Vertices) {
		return fmt.Errorf("color count %d does not match vertex count %d", len(colors), len(s.Vertices))
	}
	if triangles == nil {
		triangles = s.Triangles
	}

	bw := bufio.NewWriter(w)
	for i, v := range s.Vertices {
		c := colors[i]
		if _, err := fmt.Fprintf(bw, "v %g %g %g %.4f %.4f %.4f\n", v.X, v.Y, v.Z, c.R, c.G, c.B); err != nil {
			return err
		}
	}
	for _, t := range triangles {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SurfaceRecorder is a surface.Renderer that keeps the latest state of
// the scene so it can be written out
type SurfaceRecorder struct {
	Width, Height int
	Limits        [3][2]float64
	Surface       *models.Surface

	// Colors is a snapshot of the vertex colors at the last change
	Colors []colorful.Color

	// Triangles is the drawn subset of faces; nil means all of them
	Triangles [][3]int

	// Updates counts color changes
	Updates int
}

var _ surface.Renderer = (*SurfaceRecorder)(nil)

// SetFigure records the figure size and forgets the previous scene
func (r *SurfaceRecorder) SetFigure(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid figure size %dx%d", width, height)
	}
	*r = SurfaceRecorder{Width: width, Height: height}
	return nil
}

// SetLimits records the axis limits
func (r *SurfaceRecorder) SetLimits(limits [3][2]float64) error {
	r.Limits = limits
	return nil
}

// SetSurface records the mesh
func (r *SurfaceRecorder) SetSurface(s *models.Surface) error {
	if err := surface.Validate(s); err != nil {
		return err
	}
	r.Surface = s
	return nil
}

// SetColors takes a snapshot of the vertex colors
func (r *SurfaceRecorder) SetColors(colors []colorful.Color) error {
	if r.Surface != nil && len(colors) != len(r.Surface.Vertices) {
		return fmt.Errorf("color count %d does not match vertex count %d", len(colors), len(r.Surface.Vertices))
	}
	r.Colors = append(r.Colors[:0], colors...)
	r.Updates++
	return nil
}

// SetTriangles records the drawn faces
func (r *SurfaceRecorder) SetTriangles(triangles [][3]int) error {
	r.Triangles = append([][3]int{}, triangles...)
	return nil
}

// WriteOBJ writes the recorded scene
func (r *SurfaceRecorder) WriteOBJ(w io.Writer) error {
	if r.Surface == nil {
		return errors.New("nothing has been drawn")
	}
	return WriteSurfaceOBJ(w, r.Surface, r.Colors, r.Triangles)
}
