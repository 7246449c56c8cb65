package alloc

import "github.com/joshuapare/dlmalloc/sysmem"

// Provider is the source of backing regions for an Engine.
// This is a type alias to avoid import cycles in callers that only need alloc.
type Provider = sysmem.Provider
