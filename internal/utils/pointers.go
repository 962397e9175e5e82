// Package utils holds small generic helpers for optional wire fields.
package utils

import "strings"

// Value dereferences v, returning the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// Trimmed dereferences an optional string and strips surrounding whitespace.
func Trimmed(v *string) string {
	return strings.TrimSpace(Value(v))
}
