// Package align provides power-of-two alignment arithmetic shared by the
// allocator packages.
package align

import "golang.org/x/exp/constraints"

// Up returns n rounded up to the next multiple of a. a must be a power of two.
//
// Example:
//
//	Up(1, 16)  = 16
//	Up(16, 16) = 16
//	Up(17, 16) = 32
func Up[T constraints.Unsigned](n, a T) T {
	return (n + a - 1) &^ (a - 1)
}

// Down returns n rounded down to a multiple of a. a must be a power of two.
func Down[T constraints.Unsigned](n, a T) T {
	return n &^ (a - 1)
}

// Offset returns the number of bytes that must be added to n to make it a
// multiple of a. Zero when n is already aligned.
func Offset[T constraints.Unsigned](n, a T) T {
	if n&(a-1) == 0 {
		return 0
	}
	return (a - n&(a-1)) & (a - 1)
}

// IsAligned reports whether n is a multiple of a.
func IsAligned[T constraints.Unsigned](n, a T) bool {
	return n&(a-1) == 0
}

// IsPow2 reports whether n is a non-zero power of two.
func IsPow2[T constraints.Unsigned](n T) bool {
	return n != 0 && n&(n-1) == 0
}

// NextPow2 returns the smallest power of two >= n. NextPow2(0) is 1.
// The result wraps to zero if it does not fit in T.
func NextPow2[T constraints.Unsigned](n T) T {
	if n <= 1 {
		return 1
	}
	p := T(1)
	for p < n && p != 0 {
		p <<= 1
	}
	return p
}
