package streamlines

import (
	"fmt"
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0..100) of values, interpolating
// linearly between the two closest ranks. It returns 0 for no values.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Visibility tracks which streamlines of a mesh are drawn for a length
// threshold. A streamline is shown when its length is strictly greater
// than the threshold. Hidden streamlines keep their place in the line
// buffer but every entry of their run points at the run's first vertex,
// which collapses their segments to zero length. The vertex buffer is
// never modified.
type Visibility struct {
	mesh      *Mesh
	lengths   []float64
	visible   []bool
	threshold float64
}

// NewVisibility prepares visibility state for a mesh built from the whole
// collection and applies the initial threshold to it
func NewVisibility(mesh *Mesh, lengths []float64, threshold float64) (*Visibility, error) {
	if len(mesh.Runs) != len(lengths) {
		return nil, fmt.Errorf("mesh has %d runs but %d lengths were given", len(mesh.Runs), len(lengths))
	}

	v := &Visibility{
		mesh:      mesh,
		lengths:   lengths,
		visible:   make([]bool, len(lengths)),
		threshold: threshold,
	}

	for i := range v.visible {
		v.visible[i] = true
		if lengths[i] <= threshold {
			v.hide(i)
		}
	}

	return v, nil
}

// Threshold returns the current length threshold
func (v *Visibility) Threshold() float64 {
	return v.threshold
}

// Visible reports whether streamline i is drawn
func (v *Visibility) Visible(i int) bool {
	return v.visible[i]
}

// Shown returns the indices of the drawn streamlines in ascending order
func (v *Visibility) Shown() []int {
	shown := make([]int, 0, len(v.visible))
	for i, vis := range v.visible {
		if vis {
			shown = append(shown, i)
		}
	}
	return shown
}

// Apply moves to a new threshold. Lowering the threshold only reveals
// streamlines, raising it only hides them. It returns the indices whose
// visibility changed; an empty result means the line buffer is untouched.
func (v *Visibility) Apply(threshold float64) []int {
	var changed []int

	if threshold < v.threshold {
		for i, length := range v.lengths {
			if !v.visible[i] && length > threshold {
				v.show(i)
				changed = append(changed, i)
			}
		}
	} else {
		for i, length := range v.lengths {
			if v.visible[i] && length <= threshold {
				v.hide(i)
				changed = append(changed, i)
			}
		}
	}

	v.threshold = threshold
	return changed
}

func (v *Visibility) show(i int) {
	run := v.mesh.Runs[i]
	copy(v.mesh.Lines[run.LineOffset:run.LineOffset+run.Len()], run.Indices)
	v.visible[i] = true
}

func (v *Visibility) hide(i int) {
	run := v.mesh.Runs[i]
	if run.Len() > 0 {
		first := run.Indices[0]
		seg := v.mesh.Lines[run.LineOffset : run.LineOffset+run.Len()]
		for k := range seg {
			seg[k] = first
		}
	}
	v.visible[i] = false
}
