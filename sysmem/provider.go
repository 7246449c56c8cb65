package sysmem

import "github.com/cockroachdb/errors"

var (
	// ErrExhausted indicates the provider cannot supply another region.
	ErrExhausted = errors.New("sysmem: backing memory exhausted")

	// ErrNotOwned indicates a release of a region this provider did not hand out.
	ErrNotOwned = errors.New("sysmem: region not owned by provider")

	// ErrReleaseUnsupported indicates the provider never gives memory back.
	ErrReleaseUnsupported = errors.New("sysmem: release not supported")

	// ErrZeroSize indicates an acquire request for zero bytes.
	ErrZeroSize = errors.New("sysmem: zero-sized request")
)

// DefaultPageSize is used by providers that have no OS page size to consult.
const DefaultPageSize = 4096

// Provider supplies raw memory regions to an allocation engine.
//
// Acquire returns a region of at least minSize bytes. The returned base is
// aligned to at least 16 bytes and size is a multiple of PageSize.
// Release returns a whole region previously obtained from Acquire, with the
// exact base and size Acquire reported.
type Provider interface {
	Acquire(minSize uintptr) (base, size uintptr, err error)
	Release(base, size uintptr) error

	// CanRelease reports whether Release can ever succeed. Engines treat
	// every region as permanent when it returns false.
	CanRelease() bool

	// AllocatesZeros reports whether fresh regions are guaranteed to be zero-filled.
	AllocatesZeros() bool

	// PageSize is the granularity regions are sized in.
	PageSize() uintptr
}

// Purger is implemented by providers that can drop the physical pages behind
// part of a region while keeping the address range reserved.
// The contents of a purged range are undefined afterwards.
type Purger interface {
	Purge(addr, size uintptr) error
}
