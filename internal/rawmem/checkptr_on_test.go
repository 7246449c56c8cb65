//go:build race || msan || asan

package rawmem

// checkptrEnabled is set when the race or sanitizer builds instrument
// uintptr to unsafe.Pointer conversions. Those checks reject raw addresses
// into Go heap objects.
const checkptrEnabled = true
