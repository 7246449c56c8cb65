package sysmem

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Limit wraps a provider and refuses to hold more than a fixed number of bytes at once.
// It also counts acquisitions and releases, which makes it a convenient
// probe in tests.
type Limit struct {
	inner Provider
	limit uintptr

	mu       sync.Mutex
	held     uintptr
	acquires int
	releases int
	peak     uintptr
}

// LimitStats is a snapshot of a Limit's counters.
type LimitStats struct {
	Held     uintptr // Bytes currently held
	Peak     uintptr // Largest Held ever observed
	Acquires int     // Successful Acquire calls
	Releases int     // Successful Release calls
}

// NewLimit wraps inner. A limit of zero means unlimited.
func NewLimit(inner Provider, limit uintptr) *Limit {
	if limit == 0 {
		limit = ^uintptr(0)
	}
	return &Limit{inner: inner, limit: limit}
}

// Acquire forwards to the wrapped provider unless the cap would be exceeded.
func (l *Limit) Acquire(minSize uintptr) (uintptr, uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if minSize > l.limit-l.held {
		return 0, 0, errors.Wrapf(ErrExhausted, "limit %d reached (%d held, %d requested)",
			l.limit, l.held, minSize)
	}
	base, size, err := l.inner.Acquire(minSize)
	if err != nil {
		return 0, 0, err
	}
	if size > l.limit-l.held {
		// Page rounding pushed us over; hand it straight back.
		if l.inner.CanRelease() {
			_ = l.inner.Release(base, size)
		}
		return 0, 0, errors.Wrapf(ErrExhausted, "limit %d reached (%d held, %d rounded)",
			l.limit, l.held, size)
	}
	l.held += size
	l.acquires++
	if l.held > l.peak {
		l.peak = l.held
	}
	return base, size, nil
}

// Release forwards to the wrapped provider.
func (l *Limit) Release(base, size uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.inner.Release(base, size); err != nil {
		return err
	}
	l.held -= size
	l.releases++
	return nil
}

// Purge forwards to the wrapped provider when it supports purging and is a
// no-op otherwise.
func (l *Limit) Purge(addr, size uintptr) error {
	if p, ok := l.inner.(Purger); ok {
		return p.Purge(addr, size)
	}
	return nil
}

// CanRelease reports the wrapped provider's capability.
func (l *Limit) CanRelease() bool { return l.inner.CanRelease() }

// AllocatesZeros reports the wrapped provider's guarantee.
func (l *Limit) AllocatesZeros() bool { return l.inner.AllocatesZeros() }

// PageSize reports the wrapped provider's page size.
func (l *Limit) PageSize() uintptr { return l.inner.PageSize() }

// Stats returns a snapshot of the counters.
func (l *Limit) Stats() LimitStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimitStats{
		Held:     l.held,
		Peak:     l.peak,
		Acquires: l.acquires,
		Releases: l.releases,
	}
}
