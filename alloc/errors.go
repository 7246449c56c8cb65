package alloc

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfMemory is returned when the provider cannot supply a new region
	// or the footprint limit would be exceeded. The engine stays usable.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrRequestTooLarge is returned for sizes whose chunk size would not fit
	// in a uintptr.
	ErrRequestTooLarge = errors.New("alloc: request too large")

	// ErrCorrupted marks panics raised when chunk metadata or bin links are
	// found inconsistent.
	ErrCorrupted = errors.New("alloc: heap corrupted")
)
