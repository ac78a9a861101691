// Package utils holds helpers for the optional fields of API payloads, such
// as the receiver of an external transfer or the order behind a trade.
package utils

// Value dereferences v, returning the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to a copy of v, for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// Equal reports whether p is set and holds want. Unlike Value(p) == want it
// never matches an unset field against a zero id.
func Equal[T comparable](p *T, want T) bool {
	return p != nil && *p == want
}
