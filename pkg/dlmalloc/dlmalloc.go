package dlmalloc

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/dlmalloc/alloc"
	"github.com/joshuapare/dlmalloc/internal/align"
	"github.com/joshuapare/dlmalloc/internal/rawmem"
	"github.com/joshuapare/dlmalloc/sysmem"
)

// Layout is the size and alignment of a block.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// Validate reports whether the alignment is a power of two.
func (l Layout) Validate() error {
	if !align.IsPow2(l.Align) {
		return errors.Wrapf(ErrInvalidLayout, "alignment %d is not a power of two", l.Align)
	}
	return nil
}

// Allocator is implemented by Dlmalloc and Global.
type Allocator interface {
	Malloc(size, align uintptr) uintptr
	Calloc(size, align uintptr) uintptr
	Free(ptr, size, align uintptr)
	Realloc(ptr, oldSize, oldAlign, newSize uintptr) uintptr
}

var (
	_ Allocator = (*Dlmalloc)(nil)
	_ Allocator = (*Global)(nil)
)

// Dlmalloc serves aligned requests from one engine.
type Dlmalloc struct {
	e *alloc.Engine
}

// New creates an allocator over p. opts may be nil.
func New(p sysmem.Provider, opts *Options) *Dlmalloc {
	return &Dlmalloc{e: alloc.New(p, opts.engineConfig())}
}

// Engine returns the underlying engine for statistics and inspection.
func (d *Dlmalloc) Engine() *alloc.Engine { return d.e }

// Malloc returns size bytes aligned to align, or 0 when out of memory.
func (d *Dlmalloc) Malloc(size, align uintptr) uintptr {
	p, _ := d.malloc(size, align)
	return p
}

func (d *Dlmalloc) malloc(size, align uintptr) (uintptr, error) {
	if align <= alloc.MallocAlignment {
		return d.e.Malloc(size)
	}
	return d.e.Memalign(align, size)
}

// Calloc is Malloc with the first size bytes zeroed.
func (d *Dlmalloc) Calloc(size, align uintptr) uintptr {
	p, _ := d.calloc(size, align)
	return p
}

func (d *Dlmalloc) calloc(size, align uintptr) (uintptr, error) {
	p, err := d.malloc(size, align)
	if err != nil {
		return 0, err
	}
	if d.e.CallocMustClear(p) {
		rawmem.Zero(p, size)
	}
	return p, nil
}

// Free releases a block. size and align are those it was allocated with;
// the engine finds the size itself, so they are not checked.
func (d *Dlmalloc) Free(ptr, size, align uintptr) {
	d.e.Free(ptr)
}

// Realloc resizes a block, preserving min(oldSize, newSize) bytes. The result
// keeps oldAlign. It returns 0 when out of memory, in which case ptr is
// still valid. A newSize of 0 frees ptr and returns 0.
func (d *Dlmalloc) Realloc(ptr, oldSize, oldAlign, newSize uintptr) uintptr {
	p, _ := d.realloc(ptr, oldSize, oldAlign, newSize)
	return p
}

func (d *Dlmalloc) realloc(ptr, oldSize, oldAlign, newSize uintptr) (uintptr, error) {
	if oldAlign <= alloc.MallocAlignment {
		return d.e.Realloc(ptr, oldSize, newSize)
	}
	if ptr != 0 && newSize == 0 {
		d.Free(ptr, oldSize, oldAlign)
		return 0, nil
	}
	p, err := d.malloc(newSize, oldAlign)
	if err != nil {
		return 0, err
	}
	if ptr != 0 {
		rawmem.Copy(p, ptr, min(oldSize, newSize))
		d.Free(ptr, oldSize, oldAlign)
	}
	return p, nil
}

// Alloc allocates a block for l.
func (d *Dlmalloc) Alloc(l Layout) (uintptr, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	p, err := d.malloc(l.Size, l.Align)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "dlmalloc: alloc %d bytes at %d", l.Size, l.Align), ErrAlloc)
	}
	return p, nil
}

// AllocZeroed allocates a zeroed block for l.
func (d *Dlmalloc) AllocZeroed(l Layout) (uintptr, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	p, err := d.calloc(l.Size, l.Align)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "dlmalloc: alloc zeroed %d bytes at %d", l.Size, l.Align), ErrAlloc)
	}
	return p, nil
}

// Dealloc frees a block allocated for l.
func (d *Dlmalloc) Dealloc(ptr uintptr, l Layout) {
	d.Free(ptr, l.Size, l.Align)
}

// Grow resizes a block allocated for l to newSize bytes. On error the block
// at ptr is untouched. newSize must not be 0.
func (d *Dlmalloc) Grow(ptr uintptr, l Layout, newSize uintptr) (uintptr, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	if newSize == 0 {
		return 0, errors.Wrap(ErrInvalidLayout, "resize to zero bytes")
	}
	p, err := d.realloc(ptr, l.Size, l.Align, newSize)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "dlmalloc: resize %d to %d bytes", l.Size, newSize), ErrAlloc)
	}
	return p, nil
}

// Trim returns unused memory to the provider, keeping pad bytes of slack.
func (d *Dlmalloc) Trim(pad uintptr) bool { return d.e.Trim(pad) }

// Close releases everything the allocator holds. Outstanding blocks become
// invalid.
func (d *Dlmalloc) Close() error { return d.e.Close() }

// Bytes returns a slice over n bytes at ptr.
func Bytes(ptr, n uintptr) []byte { return rawmem.Bytes(ptr, n) }
