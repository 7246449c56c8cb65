/*
Package dlmalloc is the public face of the chunk allocator: size-and-alignment
requests in, raw addresses out.

# Quick Start

Use the process-wide instance:

	a := dlmalloc.Default()
	p := a.Malloc(256, 8)
	if p == 0 {
	    return errors.New("out of memory")
	}
	copy(dlmalloc.Bytes(p, 256), data)
	a.Free(p, 256, 8)

Or own an instance:

	d := dlmalloc.New(sysmem.NewOS(), &dlmalloc.Options{
	    TrimThreshold: 1 << 20,
	    Logger:        slog.Default(),
	})
	defer d.Close()

# Alignment

Alignments must be powers of two. Requests at or below alloc.MallocAlignment
take the ordinary path; larger ones go through the engine's Memalign. A block
allocated with a large alignment keeps it across Realloc, which then always
moves the block.

# Layouts and Errors

Malloc, Calloc and Realloc follow the C convention and return 0 on failure.
The Layout methods (Alloc, AllocZeroed, Dealloc, Grow) validate the request
and return errors wrapping ErrAlloc or ErrInvalidLayout instead, with the
engine's cause attached.

# Thread Safety

Dlmalloc is NOT thread-safe. Global wraps one Dlmalloc behind a single mutex
and is what Default returns.
*/
package dlmalloc
