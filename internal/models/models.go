package models

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Streamline is an ordered polyline approximating a fiber tract
type Streamline []r3.Vec

// Tractogram represents a collection of streamlines loaded from a track file
type Tractogram struct {
	// Streamlines holds every polyline found in the file, in file order
	Streamlines []Streamline

	// Format is the file format the tractogram was read from ("trk" or "tck")
	Format string

	// Dimensions is the voxel grid the tracks were computed on, when known
	Dimensions [3]int

	// VoxelSize is the physical size of each voxel in mm, when known
	VoxelSize [3]float64

	// VoxToRAS maps voxel indices to RAS+ millimetres; zero when unknown
	VoxToRAS [4][4]float64
}

// Len returns the number of streamlines
func (t *Tractogram) Len() int {
	return len(t.Streamlines)
}

// NumPoints returns the total number of points across all streamlines
func (t *Tractogram) NumPoints() int {
	n := 0
	for _, s := range t.Streamlines {
		n += len(s)
	}
	return n
}

// Volume represents a 3D or 4D image volume
type Volume struct {
	// Data is the volume data as a 1D array with x varying fastest,
	// then y, z and t
	Data []float64

	// Shape holds nx, ny, nz and nt; nt is 1 for 3D volumes
	Shape [4]int

	// NDim is 3 or 4
	NDim int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}

	// Mask marks background voxels that should not be drawn. It covers a
	// single 3D frame and is shared by all time points. Nil means nothing
	// is masked.
	Mask []bool
}

// NewVolume allocates a zeroed volume. nt <= 1 produces a 3D volume.
func NewVolume(nx, ny, nz, nt int) *Volume {
	ndim := 4
	if nt <= 1 {
		nt = 1
		ndim = 3
	}
	v := &Volume{
		Data:  make([]float64, nx*ny*nz*nt),
		Shape: [4]int{nx, ny, nz, nt},
		NDim:  ndim,
	}
	v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z = 1, 1, 1
	return v
}

// Index returns the offset of voxel (x, y, z, t) in Data
func (v *Volume) Index(x, y, z, t int) int {
	nx, ny, nz := v.Shape[0], v.Shape[1], v.Shape[2]
	return ((t*nz+z)*ny+y)*nx + x
}

// At returns the value of voxel (x, y, z, t)
func (v *Volume) At(x, y, z, t int) float64 {
	return v.Data[v.Index(x, y, z, t)]
}

// Set sets the value of voxel (x, y, z, t)
func (v *Volume) Set(x, y, z, t int, value float64) {
	v.Data[v.Index(x, y, z, t)] = value
}

// Masked reports whether voxel (x, y, z) is background
func (v *Volume) Masked(x, y, z int) bool {
	if v.Mask == nil {
		return false
	}
	return v.Mask[(z*v.Shape[1]+y)*v.Shape[0]+x]
}

// Surface is a triangle mesh of a cortical surface
type Surface struct {
	// Vertices holds the mesh points in scanner millimetres
	Vertices []r3.Vec

	// Triangles holds three vertex indices per face
	Triangles [][3]int
}
