// Package meshio exports streamline line meshes and colored surface meshes.
package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"niwidgets/pkg/streamlines"
)

// WriteOBJ writes a line mesh as Wavefront OBJ. Vertices carry their color
// as the non-standard but widely read "v x y z r g b" form. Each drawn
// segment becomes an "l" element; degenerate segments, which is how hidden
// streamlines are encoded, are left out.
func WriteOBJ(w io.Writer, mesh *streamlines.Mesh) error {
	bw := bufio.NewWriter(w)

	for i, v := range mesh.Vertices {
		c := mesh.Colors[i]
		if _, err := fmt.Fprintf(bw, "v %g %g %g %.4f %.4f %.4f\n", v.X, v.Y, v.Z, c[0], c[1], c[2]); err != nil {
			return err
		}
	}

	for i := 0; i+1 < len(mesh.Lines); i += 2 {
		a, b := mesh.Lines[i], mesh.Lines[i+1]
		if a == b {
			continue
		}
		// OBJ indices are 1-based
		if _, err := fmt.Fprintf(bw, "l %d %d\n", a+1, b+1); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Recorder is a streamlines.Renderer that keeps the latest state of the
// scene so it can be written out
type Recorder struct {
	Width, Height int
	Lo, Hi        float64
	Mesh          *streamlines.Mesh

	// Lines is a snapshot of the line buffer at the last change
	Lines []uint32

	// Updates counts line buffer change notifications
	Updates int
}

// SetFigure records the figure size
func (r *Recorder) SetFigure(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid figure size %dx%d", width, height)
	}
	r.Width, r.Height = width, height
	r.Mesh = nil
	r.Lines = nil
	r.Updates = 0
	return nil
}

// SetMesh records the mesh
func (r *Recorder) SetMesh(mesh *streamlines.Mesh) error {
	if err := mesh.Validate(); err != nil {
		return err
	}
	r.Mesh = mesh
	r.Lines = append([]uint32(nil), mesh.Lines...)
	return nil
}

// SetLimits records the scene extent
func (r *Recorder) SetLimits(lo, hi float64) error {
	r.Lo, r.Hi = lo, hi
	return nil
}

// LinesChanged takes a snapshot of the edited line buffer
func (r *Recorder) LinesChanged(lines []uint32) error {
	r.Lines = append(r.Lines[:0], lines...)
	r.Updates++
	return nil
}

// WriteOBJ writes the recorded scene
func (r *Recorder) WriteOBJ(w io.Writer) error {
	if r.Mesh == nil {
		return errors.New("nothing has been drawn")
	}
	mesh := *r.Mesh
	mesh.Lines = r.Lines
	return WriteOBJ(w, &mesh)
}
