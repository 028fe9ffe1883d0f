// Package controls provides the slider and dropdown controls that drive the
// widgets. Observers run synchronously on the caller's goroutine.
package controls

import (
	"time"
)

// Number is the value type a Slider can hold
type Number interface {
	~int | ~float64
}

// Slider is a bounded numeric control. With ContinuousUpdate disabled,
// observers are only notified when the user releases the handle, not on
// every drag tick.
type Slider[T Number] struct {
	Description      string
	Min, Max, Step   T
	Value            T
	ContinuousUpdate bool

	// last value observers were told about
	notified  T
	observers []func(T)
}

// FloatSlider is a slider over float64 values
type FloatSlider = Slider[float64]

// IntSlider is a slider over int values
type IntSlider = Slider[int]

// NewSlider creates a slider with continuous updates disabled
func NewSlider[T Number](value, min, max T) *Slider[T] {
	s := &Slider[T]{Min: min, Max: max, Step: 1}
	s.Value = s.clamp(value)
	s.notified = s.Value
	return s
}

// NewFloatSlider creates a float slider with continuous updates disabled
func NewFloatSlider(value, min, max float64) *FloatSlider {
	s := NewSlider(value, min, max)
	s.Step = 0.1
	return s
}

// NewIntSlider creates an int slider with continuous updates disabled
func NewIntSlider(value, min, max int) *IntSlider {
	return NewSlider(value, min, max)
}

// Observe registers fn to be called with the new value after every change
func (s *Slider[T]) Observe(fn func(T)) {
	s.observers = append(s.observers, fn)
}

// Drag moves the handle. Observers only see the move when continuous
// updates are enabled.
func (s *Slider[T]) Drag(value T) {
	if s.ContinuousUpdate {
		s.Set(value)
		return
	}
	s.Value = s.clamp(value)
}

// Release lets go of the handle at value and notifies observers if the
// value differs from the last one they saw
func (s *Slider[T]) Release(value T) {
	s.Set(value)
}

// Set changes the value and notifies observers if it differs from the
// last value they saw.
// Values outside [Min, Max] are clamped.
func (s *Slider[T]) Set(value T) {
	s.Value = s.clamp(value)
	if s.Value == s.notified {
		return
	}
	s.notify()
}

// Current returns the slider value
func (s *Slider[T]) Current() any {
	return s.Value
}

// OnChange registers a callback that ignores the value
func (s *Slider[T]) OnChange(fn func()) {
	s.Observe(func(T) { fn() })
}

func (s *Slider[T]) clamp(value T) T {
	if value < s.Min {
		return s.Min
	}
	if value > s.Max {
		return s.Max
	}
	return value
}

func (s *Slider[T]) notify() {
	s.notified = s.Value
	for _, fn := range s.observers {
		fn(s.Value)
	}
}

// PlaySlider is an IntSlider with a play button that steps through the
// values every Interval
type PlaySlider struct {
	*IntSlider
	Label    string
	Interval time.Duration
}

// NewPlaySlider creates a play slider with the given label and frame interval
func NewPlaySlider(label string, value, min, max int, interval time.Duration) *PlaySlider {
	return &PlaySlider{
		IntSlider: NewIntSlider(value, min, max),
		Label:     label,
		Interval:  interval,
	}
}

// Advance performs one play tick. It returns false once the slider is at
// its maximum, which is where playback stops.
func (p *PlaySlider) Advance() bool {
	if p.Value >= p.Max {
		return false
	}
	step := p.Step
	if step < 1 {
		step = 1
	}
	p.Set(p.Value + step)
	return true
}
