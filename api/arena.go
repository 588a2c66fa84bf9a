// File: api/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contract for the per-worker bump allocator.

package api

// ArenaStats summarizes arena usage since the last reset.
type ArenaStats struct {
	TotalAllocated  uint64 // bytes handed out since last reset
	TotalBlockBytes uint64 // capacity of all chained blocks
	BlockCount      int
}

// MemArena is a linear allocator with whole-region reclamation.
// Arenas are single-owner: only the owning goroutine may call Alloc
// between Reset calls.
type MemArena interface {
	// Alloc returns an 8-byte-aligned region of n bytes valid until
	// the next Reset or Destroy.
	Alloc(n int) ([]byte, error)

	// Reset zeroes the used counters but retains every block, so the
	// next cycle allocates nothing from the heap.
	Reset()

	// Destroy releases all blocks. The arena is unusable afterwards.
	Destroy()

	// Stats reports usage counters.
	Stats() ArenaStats
}
