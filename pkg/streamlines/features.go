package streamlines

import (
	"errors"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"niwidgets/internal/models"
)

// ErrDegenerateDirection is returned when a streamline's endpoints coincide
var ErrDegenerateDirection = errors.New("streamline endpoints coincide, direction is undefined")

// Color is an RGB triple with channels in [0, 1]
type Color [3]float64

// MidGray is used in grayscale mode and for streamlines without a direction
var MidGray = Color{0.5, 0.5, 0.5}

// Length returns the sum of euclidean distances between neighbouring points
func Length(s models.Streamline) float64 {
	var total float64
	for i := 1; i < len(s); i++ {
		total += r3.Norm(r3.Sub(s[i], s[i-1]))
	}
	return total
}

// DirectionColor colours a streamline by the direction from its last point
// to its first point. The unit direction's x, y and z components drive the
// red, green and blue channels. Channels use the component's absolute
// value, so a tract running left-right is red whichever end comes first.
func DirectionColor(s models.Streamline) (Color, error) {
	if len(s) < 2 {
		return MidGray, ErrDegenerateDirection
	}

	d := r3.Sub(s[0], s[len(s)-1])
	if r3.Norm(d) == 0 {
		return MidGray, ErrDegenerateDirection
	}

	u := r3.Unit(d)
	return Color{math.Abs(u.X), math.Abs(u.Y), math.Abs(u.Z)}, nil
}

// Features holds the per-streamline length and color of an active collection.
// Both slices are indexed identically to the collection.
type Features struct {
	Lengths []float64
	Colors  []Color
}

// ComputeFeatures computes lengths and colors once for a collection.
// Streamlines without a usable direction fall back to MidGray.
func ComputeFeatures(collection []models.Streamline, grayscale bool) *Features {
	f := &Features{
		Lengths: make([]float64, len(collection)),
		Colors:  make([]Color, len(collection)),
	}

	degenerate := 0
	for i, s := range collection {
		f.Lengths[i] = Length(s)

		if grayscale {
			f.Colors[i] = MidGray
			continue
		}

		c, err := DirectionColor(s)
		if err != nil {
			degenerate++
		}
		f.Colors[i] = c
	}

	if degenerate > 0 {
		log.WithFields(log.Fields{
			"degenerate": degenerate,
			"total":      len(collection),
		}).Warn("Some streamlines have coincident endpoints, drawing them gray")
	}

	return f
}
