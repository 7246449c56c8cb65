//go:build !race && !msan && !asan

package rawmem

const checkptrEnabled = false
