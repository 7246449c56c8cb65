//go:build windows

package sysmem

import (
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"

	"github.com/joshuapare/dlmalloc/internal/align"
)

// OS provides committed virtual memory from VirtualAlloc.
type OS struct {
	mu       sync.Mutex
	sizes    map[uintptr]uintptr // base -> size, VirtualFree releases whole reservations only
	pageSize uintptr
}

// NewOS creates an OS provider.
func NewOS() *OS {
	return &OS{
		sizes:    make(map[uintptr]uintptr),
		pageSize: uintptr(windows.Getpagesize()),
	}
}

// Acquire reserves and commits at least minSize bytes of zeroed memory.
func (o *OS) Acquire(minSize uintptr) (uintptr, uintptr, error) {
	if minSize == 0 {
		return 0, 0, ErrZeroSize
	}
	size := align.Up(minSize, o.pageSize)
	if size < minSize {
		return 0, 0, errors.Wrapf(ErrExhausted, "request of %d bytes overflows", minSize)
	}

	base, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrExhausted, "VirtualAlloc %d bytes: %v", size, err)
	}

	o.mu.Lock()
	o.sizes[base] = size
	o.mu.Unlock()

	return base, size, nil
}

// Release frees a reservation returned by Acquire.
func (o *OS) Release(base, size uintptr) error {
	o.mu.Lock()
	got, ok := o.sizes[base]
	if ok && got == size {
		delete(o.sizes, base)
	}
	o.mu.Unlock()

	if !ok || got != size {
		return errors.Wrapf(ErrNotOwned, "release of %#x (%d bytes)", base, size)
	}
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		return errors.Wrapf(err, "VirtualFree %#x", base)
	}
	return nil
}

// Purge resets the pages in [addr, addr+size); their contents become undefined.
func (o *OS) Purge(addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	if !align.IsAligned(addr, o.pageSize) || !align.IsAligned(size, o.pageSize) {
		return errors.Newf("sysmem: purge range %#x+%d not page aligned", addr, size)
	}
	_, err := windows.VirtualAlloc(addr, size, windows.MEM_RESET, windows.PAGE_READWRITE)
	return err
}

// CanRelease is always true.
func (o *OS) CanRelease() bool { return true }

// AllocatesZeros is always true for freshly committed pages.
func (o *OS) AllocatesZeros() bool { return true }

// PageSize returns the system page size.
func (o *OS) PageSize() uintptr { return o.pageSize }
