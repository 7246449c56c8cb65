//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package sysmem

import (
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/joshuapare/dlmalloc/internal/align"
	"github.com/joshuapare/dlmalloc/internal/rawmem"
)

// OS provides anonymous private mappings from the kernel.
type OS struct {
	mu       sync.Mutex
	maps     map[uintptr][]byte // base -> mapping, needed by Munmap
	pageSize uintptr
}

// NewOS creates an OS provider.
func NewOS() *OS {
	return &OS{
		maps:     make(map[uintptr][]byte),
		pageSize: uintptr(unix.Getpagesize()),
	}
}

// Acquire maps at least minSize bytes of fresh zeroed memory.
func (o *OS) Acquire(minSize uintptr) (uintptr, uintptr, error) {
	if minSize == 0 {
		return 0, 0, ErrZeroSize
	}
	size := align.Up(minSize, o.pageSize)
	if size < minSize || size > uintptr(^uint(0)>>1) {
		return 0, 0, errors.Wrapf(ErrExhausted, "request of %d bytes overflows", minSize)
	}

	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrExhausted, "mmap %d bytes: %v", size, err)
	}
	base := rawmem.AddrOf(data)

	o.mu.Lock()
	o.maps[base] = data
	o.mu.Unlock()

	return base, size, nil
}

// Release unmaps a region returned by Acquire.
func (o *OS) Release(base, size uintptr) error {
	o.mu.Lock()
	data, ok := o.maps[base]
	if ok && uintptr(len(data)) == size {
		delete(o.maps, base)
	}
	o.mu.Unlock()

	if !ok || uintptr(len(data)) != size {
		return errors.Wrapf(ErrNotOwned, "release of %#x (%d bytes)", base, size)
	}
	if err := unix.Munmap(data); err != nil {
		return errors.Wrapf(err, "munmap %#x", base)
	}
	return nil
}

// Purge tells the kernel the pages in [addr, addr+size) are no longer needed.
// addr and size must be page aligned.
func (o *OS) Purge(addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	if !align.IsAligned(addr, o.pageSize) || !align.IsAligned(size, o.pageSize) {
		return errors.Newf("sysmem: purge range %#x+%d not page aligned", addr, size)
	}
	return unix.Madvise(rawmem.Bytes(addr, size), unix.MADV_DONTNEED)
}

// CanRelease is always true.
func (o *OS) CanRelease() bool { return true }

// AllocatesZeros is always true for anonymous mappings.
func (o *OS) AllocatesZeros() bool { return true }

// PageSize returns the kernel page size.
func (o *OS) PageSize() uintptr { return o.pageSize }
