// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer provides small generic helpers for optional values.

Crawler payloads mark optional fields by omission or by an empty string;
these helpers turn both into a nil pointer so the store can tell "leave
as is" apart from "set".

Key Functions:
  - To: Creates a pointer from a value literal.
  - Val: Safely dereferences a pointer, returning the zero value if nil.
  - NonZero: Returns nil for the zero value, a pointer otherwise.
*/
package pointer

// To returns a pointer to the provided value.
func To[T any](v T) *T {
	return &v
}

// Val safely dereferences a pointer.
// If the pointer is nil, it returns the zero value of the underlying type.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// NonZero returns nil when v is the zero value of T, and &v otherwise.
//
//	pointer.NonZero("")    // nil
//	pointer.NonZero("Mo")  // &"Mo"
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
