// Package ptr provides small helpers for taking pointers to values, mostly
// used when filling optional API request fields.
package ptr

// To creates a pointer to the given value.
func To[T any](v T) *T {
	return &v
}

// Value dereferences p, returning the zero value when p is nil.
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
