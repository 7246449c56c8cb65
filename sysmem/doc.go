// Package sysmem provides backing-memory providers for the alloc engine.
//
// # Overview
//
// A provider hands out coarse, page-granular regions of raw memory and may
// take them back. The engine carves those regions into chunks; providers never
// see individual allocations.
//
// # Implementations
//
// OS: Virtual memory straight from the operating system
//
//   - mmap/munmap on Linux, macOS and the BSDs (golang.org/x/sys/unix)
//   - VirtualAlloc/VirtualFree on Windows (golang.org/x/sys/windows)
//   - Falls back to GoHeap everywhere else (js/wasm, wasip1, plan9, ...)
//   - Supports Purge (MADV_DONTNEED / MEM_RESET)
//
// GoHeap: Regions allocated as Go byte slices
//
//   - Each region stays reachable from the provider until released
//   - Regions are never moved by the Go runtime, so raw addresses stay valid
//
// Fixed: A single caller-supplied buffer handed out front to back
//
//   - Grow-only; Release is unsupported, like wasm linear memory or an
//     embedded system's static heap
//
// Limit: Wraps another provider and caps the bytes it may hold at once
//
// # Thread Safety
//
// All providers in this package are safe for concurrent use, so one provider
// may back several engines.
package sysmem
