package controls

import (
	"fmt"
	"slices"
)

// DefaultColormaps is offered when no colormap choice is given
var DefaultColormaps = []string{
	"viridis",
	"summer",
	"gray",
	"Blues",
	"Greens",
	"Greys",
	"Oranges",
	"Purples",
	"Reds",
	"nipy_spectral",
}

// Dropdown selects one value out of a fixed list of options
type Dropdown struct {
	Description string
	Options     []string
	Value       string

	observers []func(string)
}

// NewDropdown creates a dropdown with the first option selected
func NewDropdown(description string, options []string) (*Dropdown, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("dropdown %q needs at least one option", description)
	}
	return &Dropdown{
		Description: description,
		Options:     slices.Clone(options),
		Value:       options[0],
	}, nil
}

// ColormapDropdown builds the colormap picker. With no choices it offers
// DefaultColormaps starting at viridis; with several choices it offers
// those, starting at the first. A single choice gives a dropdown that
// cannot change.
func ColormapDropdown(choices []string) *Dropdown {
	if len(choices) == 0 {
		choices = DefaultColormaps
	}
	d, _ := NewDropdown("Colormap:", choices)
	return d
}

// Fixed reports whether the dropdown has a single option
func (d *Dropdown) Fixed() bool {
	return len(d.Options) == 1
}

// Select changes the selected option and notifies observers
func (d *Dropdown) Select(value string) error {
	if !slices.Contains(d.Options, value) {
		return fmt.Errorf("%q is not an option of %s %v", value, d.Description, d.Options)
	}
	if value == d.Value {
		return nil
	}
	d.Value = value
	for _, fn := range d.observers {
		fn(value)
	}
	return nil
}

// Observe registers fn to be called with every newly selected option
func (d *Dropdown) Observe(fn func(string)) {
	d.observers = append(d.observers, fn)
}

// Current returns the selected option
func (d *Dropdown) Current() any {
	return d.Value
}

// OnChange registers a callback that ignores the value
func (d *Dropdown) OnChange(fn func()) {
	d.Observe(func(string) { fn() })
}

// Checkbox is a boolean toggle
type Checkbox struct {
	Description string
	Value       bool

	observers []func(bool)
}

// NewCheckbox creates a checkbox
func NewCheckbox(description string, value bool) *Checkbox {
	return &Checkbox{Description: description, Value: value}
}

// Toggle sets the checkbox value and notifies observers when it changed
func (c *Checkbox) Toggle(value bool) {
	if value == c.Value {
		return
	}
	c.Value = value
	for _, fn := range c.observers {
		fn(value)
	}
}

// Observe registers fn to be called on every change
func (c *Checkbox) Observe(fn func(bool)) {
	c.observers = append(c.observers, fn)
}

// Current returns the checkbox value
func (c *Checkbox) Current() any {
	return c.Value
}

// OnChange registers a callback that ignores the value
func (c *Checkbox) OnChange(fn func()) {
	c.Observe(func(bool) { fn() })
}
