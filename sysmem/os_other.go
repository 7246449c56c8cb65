//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package sysmem

// OS falls back to Go-managed regions on platforms without a supported
// virtual memory API (js/wasm, wasip1, plan9, ...).
type OS struct {
	*GoHeap
}

// NewOS creates an OS provider backed by GoHeap.
func NewOS() *OS {
	return &OS{GoHeap: NewGoHeap(DefaultPageSize)}
}
