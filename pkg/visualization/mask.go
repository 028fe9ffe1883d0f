package visualization

import (
	"math"

	"niwidgets/internal/models"
)

// LabelComponents labels the 6-connected components of the true voxels in
// a nx*ny*nz grid laid out x fastest. Labels start at 1; 0 marks voxels
// that are not candidates. It returns the labels and the component count.
func LabelComponents(candidates []bool, nx, ny, nz int) ([]int, int) {
	labels := make([]int, len(candidates))
	n := 0
	queue := make([]int, 0, 64)

	for start, ok := range candidates {
		if !ok || labels[start] != 0 {
			continue
		}

		n++
		labels[start] = n
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			x := idx % nx
			y := (idx / nx) % ny
			z := idx / (nx * ny)

			visit := func(nb int) {
				if candidates[nb] && labels[nb] == 0 {
					labels[nb] = n
					queue = append(queue, nb)
				}
			}
			if x > 0 {
				visit(idx - 1)
			}
			if x < nx-1 {
				visit(idx + 1)
			}
			if y > 0 {
				visit(idx - nx)
			}
			if y < ny-1 {
				visit(idx + nx)
			}
			if z > 0 {
				visit(idx - nx*ny)
			}
			if z < nz-1 {
				visit(idx + nx*ny)
			}
		}
	}

	return labels, n
}

// BackgroundMask finds clusters of voxels that round to zero and touch a
// face of the volume. For 4D volumes a voxel counts as zero when its
// maximum over time rounds to zero.
func BackgroundMask(vol *models.Volume) []bool {
	nx, ny, nz, nt := vol.Shape[0], vol.Shape[1], vol.Shape[2], vol.Shape[3]

	candidates := make([]bool, nx*ny*nz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				peak := math.Inf(-1)
				for t := 0; t < nt; t++ {
					peak = math.Max(peak, vol.At(x, y, z, t))
				}
				candidates[(z*ny+y)*nx+x] = math.RoundToEven(peak) == 0
			}
		}
	}

	labels, n := LabelComponents(candidates, nx, ny, nz)
	touching := make([]bool, n+1)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				if x == 0 || x == nx-1 || y == 0 || y == ny-1 || z == 0 || z == nz-1 {
					touching[labels[(z*ny+y)*nx+x]] = true
				}
			}
		}
	}
	// label 0 is not a component
	touching[0] = false

	mask := make([]bool, len(labels))
	for i, l := range labels {
		mask[i] = touching[l]
	}
	return mask
}

// MaskBackground sets the volume's mask to its background clusters.
// Voxels inside the head that happen to be zero are kept as long as they
// do not connect to the edge of the image.
func MaskBackground(vol *models.Volume) {
	vol.Mask = BackgroundMask(vol)
}
