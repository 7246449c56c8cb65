// Package verify provides whole-heap validation for alloc.Engine.
//
// # Overview
//
// The checks run over an alloc.Snapshot and never touch engine internals, so
// they can be used from tests after every step of a randomized workload.
//
// Validation categories:
//   - Layout: chunks tile each segment exactly, sizes and addresses aligned
//   - Flags: every PINUSE bit matches the predecessor's state
//   - Coalescing: no two free chunks are adjacent
//   - Bins: every free chunk except top is binned once, in the right bin,
//     and the bitmaps match bin contents
//   - Trees: trie nodes are in range and ordered, rings hold one size
//   - Top: the top chunk ends at the fence of the top segment
//   - Footprint: segment and direct region sizes add up
//
// # Quick Start
//
//	if err := verify.Heap(engine); err != nil {
//	    t.Fatalf("heap invalid: %v", err)
//	}
//
// # ValidationError
//
// Failures are reported as *ValidationError with the failing category in
// Type and the chunk address in Addr (0 when the failure has no address).
package verify
