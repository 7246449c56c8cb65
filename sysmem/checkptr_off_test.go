//go:build !race && !msan && !asan

package sysmem

const checkptrEnabled = false
