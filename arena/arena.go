// File: arena/arena.go
// Package arena implements the per-worker chained bump allocator.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// An Arena hands out 8-byte-aligned regions from a singly linked chain of
// blocks. Individual regions are never freed; Reset reclaims everything at
// once while retaining the blocks, so a steady-state request cycle performs
// no heap allocation.

package arena

import (
	"math"

	"github.com/momentics/hioload-mcp/api"
)

// DefaultBlockSize is used when the caller passes a zero block size.
const DefaultBlockSize = 32 * 1024

const alignment = 8

type block struct {
	next *block
	buf  []byte
	used int
}

// Arena is a chained-block linear allocator. Not thread-safe: only the
// owning goroutine may allocate between Reset calls.
type Arena struct {
	head           *block
	blockSize      int
	totalAllocated uint64
	blockBytes     uint64
	blockCount     int
	destroyed      bool

	// Arena blocks are byte slices the collector does not scan for
	// pointers, so heap objects referenced only from arena-resident
	// structs must be pinned here until the next Reset.
	refs []any
}

var _ api.MemArena = (*Arena)(nil)

// New creates an arena with the given default block size. Zero selects
// DefaultBlockSize. No block is allocated until the first Alloc.
func New(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Arena{blockSize: blockSize}
}

// Alloc returns a zeroed region of n bytes, 8-byte aligned, valid until the
// next Reset or Destroy.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if a == nil || n <= 0 {
		return nil, api.ErrInvalidParameter
	}
	if a.destroyed {
		return nil, api.ErrAllocationFailed
	}
	if n > math.MaxInt-alignment {
		return nil, api.ErrInvalidSize
	}
	rounded := (n + alignment - 1) &^ (alignment - 1)

	// First fit over the chain, so blocks retained by Reset are reused
	// before a new one is prepended.
	b := a.head
	for b != nil && b.used+rounded > len(b.buf) {
		b = b.next
	}
	if b == nil {
		if err := a.grow(rounded); err != nil {
			return nil, err
		}
		b = a.head
	}
	region := b.buf[b.used : b.used+n : b.used+n]
	b.used += rounded
	a.totalAllocated += uint64(rounded)
	clear(region)
	return region, nil
}

// grow prepends a fresh block sized max(n, blockSize).
func (a *Arena) grow(n int) error {
	size := a.blockSize
	if n > size {
		size = n
	}
	b := &block{buf: make([]byte, size), next: a.head}
	a.head = b
	a.blockBytes += uint64(size)
	a.blockCount++
	return nil
}

// Reset zeroes the used counters but retains every block.
func (a *Arena) Reset() {
	if a == nil || a.destroyed {
		return
	}
	for b := a.head; b != nil; b = b.next {
		b.used = 0
	}
	a.totalAllocated = 0
	clear(a.refs)
	a.refs = a.refs[:0]
}

// KeepAlive pins a heap object for the current arena cycle. Required for
// any heap allocation whose only reference lives inside arena storage.
func (a *Arena) KeepAlive(v any) {
	if a == nil || a.destroyed {
		return
	}
	a.refs = append(a.refs, v)
}

// Destroy releases all blocks; the arena is unusable afterwards.
func (a *Arena) Destroy() {
	if a == nil || a.destroyed {
		return
	}
	a.head = nil
	a.blockBytes = 0
	a.blockCount = 0
	a.totalAllocated = 0
	a.refs = nil
	a.destroyed = true
}

// Stats reports usage since the last reset plus the retained capacity.
func (a *Arena) Stats() api.ArenaStats {
	if a == nil {
		return api.ArenaStats{}
	}
	return api.ArenaStats{
		TotalAllocated:  a.totalAllocated,
		TotalBlockBytes: a.blockBytes,
		BlockCount:      a.blockCount,
	}
}
