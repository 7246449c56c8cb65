// Package rawmem contains helpers for reading and writing allocator payloads
// addressed by raw uintptr values.
//
// Every address passed here must point into memory that is not managed by the
// Go garbage collector as a movable object: OS mappings, or Go heap regions
// that a provider keeps reachable for as long as the address is in use.
package rawmem

import (
	"math/bits"
	"unsafe"
)

// Bytes returns an n-byte slice aliasing the memory at addr.
// Returns nil when addr is zero or n is zero.
func Bytes(addr, n uintptr) []byte {
	if addr == 0 || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Zero clears n bytes starting at addr.
func Zero(addr, n uintptr) {
	clear(Bytes(addr, n))
}

// Fill sets n bytes starting at addr to b.
func Fill(addr, n uintptr, b byte) {
	buf := Bytes(addr, n)
	for i := range buf {
		buf[i] = b
	}
}

// Copy copies n bytes from src to dst. The ranges may overlap.
func Copy(dst, src, n uintptr) {
	if n == 0 || dst == src {
		return
	}
	copy(Bytes(dst, n), Bytes(src, n))
}

// IsZero reports whether all n bytes at addr are zero.
func IsZero(addr, n uintptr) bool {
	for _, b := range Bytes(addr, n) {
		if b != 0 {
			return false
		}
	}
	return true
}

// AddrOf returns the address of the first element of b, or zero for an empty slice.
func AddrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// MulOverflowSafe multiplies a and b, returning ok = false when the product
// does not fit in a uintptr. Used for calloc-style count*size requests.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	hi, lo := bits.Mul(uint(a), uint(b))
	if hi != 0 {
		return 0, false
	}
	return uintptr(lo), true
}

// AddOverflowSafe adds a and b, returning ok = false on wraparound.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	sum, carry := bits.Add(uint(a), uint(b), 0)
	if carry != 0 {
		return 0, false
	}
	return uintptr(sum), true
}
