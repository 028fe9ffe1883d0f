package controls

import (
	"maps"
)

// Control is anything Interact can read a value from and watch for changes
type Control interface {
	Current() any
	OnChange(fn func())
}

// Fixed wraps a value that Interact passes through without offering a control
type Fixed struct {
	Value any
}

// Interact calls fn with the resolved keyword arguments once, and again
// every time one of the controls among kwargs changes. Controls resolve to
// their current value, Fixed to its wrapped value, anything else as is.
// Errors from fn are handed to onError, which may be nil.
func Interact(fn func(kwargs map[string]any) error, kwargs map[string]any, onError func(error)) error {
	call := func() error {
		return fn(Resolve(kwargs))
	}

	for _, v := range kwargs {
		if c, ok := v.(Control); ok {
			c.OnChange(func() {
				if err := call(); err != nil && onError != nil {
					onError(err)
				}
			})
		}
	}

	return call()
}

// Resolve returns a copy of kwargs with controls replaced by their values
func Resolve(kwargs map[string]any) map[string]any {
	resolved := maps.Clone(kwargs)
	if resolved == nil {
		resolved = map[string]any{}
	}
	for k, v := range resolved {
		switch c := v.(type) {
		case Control:
			resolved[k] = c.Current()
		case Fixed:
			resolved[k] = c.Value
		}
	}
	return resolved
}
