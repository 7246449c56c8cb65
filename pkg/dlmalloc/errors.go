package dlmalloc

import "github.com/cockroachdb/errors"

var (
	// ErrAlloc indicates the engine could not serve a request.
	ErrAlloc = errors.New("dlmalloc: allocation failed")

	// ErrInvalidLayout indicates an alignment that is not a power of two.
	ErrInvalidLayout = errors.New("dlmalloc: invalid layout")
)
