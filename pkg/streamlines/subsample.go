package streamlines

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"niwidgets/internal/models"
)

var (
	// ErrInvalidDisplayFraction is returned when a display fraction is outside (0, 1]
	ErrInvalidDisplayFraction = errors.New("display fraction must be a float in (0, 1]")

	// ErrInvalidSkip is returned when a stride is smaller than 1
	ErrInvalidSkip = errors.New("skip must be at least 1")
)

// Stride keeps every skip-th streamline starting at index 0
func Stride(collection []models.Streamline, skip int) ([]models.Streamline, error) {
	if skip < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSkip, skip)
	}

	subset := make([]models.Streamline, 0, (len(collection)+skip-1)/skip)
	for i := 0; i < len(collection); i += skip {
		subset = append(subset, collection[i])
	}
	return subset, nil
}

// SampleIndices draws floor(fraction*n) distinct indices from [0, n).
// The indices are the prefix of a uniform random permutation, so their
// order is random as well.
func SampleIndices(n int, fraction float64, src rand.Source) ([]int, error) {
	// written so that NaN is rejected too
	if !(fraction > 0 && fraction <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDisplayFraction, fraction)
	}

	count := int(math.Floor(fraction * float64(n)))
	perm := rand.New(src).Perm(n)
	return perm[:count], nil
}

// Fraction selects a random display fraction of the collection without replacement
func Fraction(collection []models.Streamline, fraction float64, src rand.Source) ([]models.Streamline, error) {
	indices, err := SampleIndices(len(collection), fraction, src)
	if err != nil {
		return nil, err
	}
	return Select(collection, indices), nil
}

// Select returns the streamlines at the given indices, in the order given
func Select(collection []models.Streamline, indices []int) []models.Streamline {
	subset := make([]models.Streamline, len(indices))
	for i, idx := range indices {
		subset[i] = collection[idx]
	}
	return subset
}
