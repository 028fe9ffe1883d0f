package streamlines

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"niwidgets/internal/models"
)

// Run records where one streamline's segments live in the line-index buffer
type Run struct {
	// LineOffset is the position of the run's first entry in Mesh.Lines
	LineOffset int

	// PointCount is the number of points of the streamline
	PointCount int

	// Indices is a private copy of the run as originally built, used to
	// restore the run after it has been hidden
	Indices []uint32
}

// Len returns the number of entries the run occupies in the line-index buffer
func (r Run) Len() int {
	return len(r.Indices)
}

// Mesh is a line mesh in the layout expected by a renderer that draws
// disjoint two-point segments
type Mesh struct {
	// Vertices is the concatenation of all streamline points
	Vertices []r3.Vec

	// Lines pairs up vertex offsets, two entries per segment
	Lines []uint32

	// Colors holds one color per vertex, inherited from its streamline
	Colors []Color

	// Runs is parallel to the streamlines the mesh was built from
	Runs []Run
}

// runIndices returns the line-index run of a streamline with pointCount
// points starting at vertex offset: the range [offset, offset+pointCount)
// with every value repeated twice and the first and last entry dropped.
func runIndices(offset, pointCount int) []uint32 {
	if pointCount < 2 {
		return []uint32{}
	}

	n := 2 * (pointCount - 1)
	run := make([]uint32, n)
	for k := 0; k < n; k++ {
		run[k] = uint32(offset + (k+1)/2)
	}
	return run
}

// BuildMesh converts streamlines into a vertex buffer and a line-index
// buffer. colors must be parallel to collection. When indices is nil the
// whole collection is used, otherwise only the selected streamlines, in
// the order given; Runs is then parallel to indices.
func BuildMesh(collection []models.Streamline, colors []Color, indices []int) (*Mesh, error) {
	if len(colors) != len(collection) {
		return nil, fmt.Errorf("color count %d does not match streamline count %d", len(colors), len(collection))
	}

	if indices == nil {
		indices = make([]int, len(collection))
		for i := range indices {
			indices[i] = i
		}
	}

	numVertices, numLines := 0, 0
	for _, idx := range indices {
		if idx < 0 || idx >= len(collection) {
			return nil, fmt.Errorf("streamline index %d out of range [0, %d)", idx, len(collection))
		}
		l := len(collection[idx])
		numVertices += l
		if l > 1 {
			numLines += 2 * (l - 1)
		}
	}
	if uint64(numVertices) > math.MaxUint32 {
		return nil, fmt.Errorf("too many vertices for a 32-bit index buffer: %d", numVertices)
	}

	mesh := &Mesh{
		Vertices: make([]r3.Vec, 0, numVertices),
		Lines:    make([]uint32, 0, numLines),
		Colors:   make([]Color, 0, numVertices),
		Runs:     make([]Run, 0, len(indices)),
	}

	for _, idx := range indices {
		s := collection[idx]
		vertexOffset := len(mesh.Vertices)

		run := Run{
			LineOffset: len(mesh.Lines),
			PointCount: len(s),
			Indices:    runIndices(vertexOffset, len(s)),
		}
		mesh.Lines = append(mesh.Lines, run.Indices...)
		mesh.Runs = append(mesh.Runs, run)

		mesh.Vertices = append(mesh.Vertices, s...)
		for range s {
			mesh.Colors = append(mesh.Colors, colors[idx])
		}
	}

	return mesh, nil
}

// Limits returns the smallest and largest coordinate over all three axes,
// which gives a cubic scene extent enclosing every vertex
func (m *Mesh) Limits() (lo, hi float64) {
	if len(m.Vertices) == 0 {
		return 0, 0
	}

	min, max := m.Box()
	lo = math.Min(min.X, math.Min(min.Y, min.Z))
	hi = math.Max(max.X, math.Max(max.Y, max.Z))
	return lo, hi
}

// Box returns the per-axis bounding box of the vertex buffer
func (m *Mesh) Box() (min, max r3.Vec) {
	if len(m.Vertices) == 0 {
		return r3.Vec{}, r3.Vec{}
	}

	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min.X, max.X = math.Min(min.X, v.X), math.Max(max.X, v.X)
		min.Y, max.Y = math.Min(min.Y, v.Y), math.Max(max.Y, v.Y)
		min.Z, max.Z = math.Min(min.Z, v.Z), math.Max(max.Z, v.Z)
	}
	return min, max
}

// Validate checks the buffer invariants: one color per vertex, runs that
// tile the line buffer, and line entries that are valid vertex offsets
func (m *Mesh) Validate() error {
	if len(m.Colors) != len(m.Vertices) {
		return fmt.Errorf("color count %d does not match vertex count %d", len(m.Colors), len(m.Vertices))
	}

	points, lines := 0, 0
	for i, run := range m.Runs {
		if run.LineOffset != lines {
			return fmt.Errorf("run %d starts at %d, expected %d", i, run.LineOffset, lines)
		}
		points += run.PointCount
		lines += run.Len()
	}
	if points != len(m.Vertices) {
		return fmt.Errorf("runs cover %d points, vertex buffer has %d", points, len(m.Vertices))
	}
	if lines != len(m.Lines) {
		return fmt.Errorf("runs cover %d line entries, line buffer has %d", lines, len(m.Lines))
	}

	for i, idx := range m.Lines {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("line entry %d references vertex %d of %d", i, idx, len(m.Vertices))
		}
	}
	return nil
}
