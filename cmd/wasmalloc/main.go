//go:build wasip1

// Command wasmalloc exports a C allocator ABI from a WebAssembly module, so a
// host or a guest written in another language can share the Go-side heap.
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o wasmalloc.wasm ./cmd/wasmalloc
package main

import (
	"github.com/joshuapare/dlmalloc/alloc"
	"github.com/joshuapare/dlmalloc/internal/rawmem"
	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
)

//go:wasmexport malloc
func malloc(size uint32) uint32 {
	return uint32(dlmalloc.Default().Malloc(uintptr(size), alloc.MallocAlignment))
}

//go:wasmexport calloc
func calloc(n, size uint32) uint32 {
	total, ok := rawmem.MulOverflowSafe(uintptr(n), uintptr(size))
	if !ok {
		return 0
	}
	return uint32(dlmalloc.Default().Calloc(total, alloc.MallocAlignment))
}

//go:wasmexport free
func free(ptr uint32) {
	dlmalloc.Default().Free(uintptr(ptr), 0, alloc.MallocAlignment)
}

// realloc does not know the caller's old size, so it preserves the whole
// usable size of the block.
//
//go:wasmexport realloc
func realloc(ptr, size uint32) uint32 {
	var p uintptr
	dlmalloc.Default().With(func(d *dlmalloc.Dlmalloc) {
		var old uintptr
		if ptr != 0 {
			old = d.Engine().UsableSize(uintptr(ptr))
		}
		p = d.Realloc(uintptr(ptr), old, alloc.MallocAlignment, uintptr(size))
	})
	return uint32(p)
}

//go:wasmexport aligned_alloc
func alignedAlloc(align, size uint32) uint32 {
	p, err := dlmalloc.Default().Alloc(dlmalloc.Layout{Size: uintptr(size), Align: uintptr(align)})
	if err != nil {
		return 0
	}
	return uint32(p)
}

func main() {}
