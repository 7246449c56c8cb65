// Package alloc implements a general-purpose chunk allocator over raw memory
// regions supplied by a sysmem.Provider.
//
// # Overview
//
// The engine follows the classic boundary-tag design: every allocation is a
// chunk carrying its size and two in-use flags in a header word, free chunks
// carry a footer so their successor can find them, and adjacent free chunks
// are always coalesced. Free chunks are indexed by size:
//
//   - 32 small bins hold chunks below 256 bytes, one exact size per bin
//   - 32 tree bins hold larger chunks in bitwise tries, one trie per half
//     power-of-two range, so the best fit is found in O(log n)
//   - two bitmaps record which bins are non-empty
//
// The free space at the end of the newest segment is the top chunk. It is
// used when no bin fits and grows back when neighbouring chunks are freed.
//
// # Usage Example
//
//	e := alloc.New(sysmem.NewOS(), nil)
//	defer e.Close()
//
//	mem, err := e.Malloc(128)
//	if err != nil {
//	    return err
//	}
//	buf := rawmem.Bytes(mem, 128)
//	copy(buf, "hello")
//
//	mem, err = e.Realloc(mem, 128, 4096)
//	...
//	e.Free(mem)
//
// # Chunk Layout
//
// See chunk.go. Payload addresses are MallocAlignment aligned and sit two
// words past the chunk header. An in-use chunk costs one word of overhead;
// the smallest chunk is MinChunkSize bytes.
//
// # Backing Memory
//
// When nothing fits, the engine acquires a new segment of at least
// Config.Granularity bytes and makes its space the new top. Requests of
// Config.MmapThreshold bytes and more get a region of their own when the
// provider can release memory, and that region is returned as soon as the
// chunk is freed. Segments that become entirely free are released at once;
// the top segment is kept until Trim, or until the top chunk grows past
// Config.TrimThreshold. A provider that cannot release (sysmem.Fixed) keeps
// every segment for the lifetime of the engine.
//
// # Errors
//
// Allocation failures return ErrOutOfMemory or ErrRequestTooLarge and leave
// the engine usable. Freeing a foreign pointer, freeing twice, or passing a
// wrong old size to Realloc are caller errors. The engine catches some of
// them through cheap link checks and panics with an error marked
// ErrCorrupted; with Config.Debug (or DLMALLOC_DEBUG=1) every operation is
// followed by a full heap check.
//
// # Thread Safety
//
// An Engine is NOT thread-safe. All calls must be serialized by the caller,
// e.g. with the locked wrapper in pkg/dlmalloc.
//
// # Related Packages
//
//   - sysmem: backing memory providers
//   - verify: whole-heap validation over Snapshot
//   - pkg/dlmalloc: aligned public adapter and process-wide instance
package alloc
