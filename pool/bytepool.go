// File: pool/bytepool.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed free-list byte pool. LIFO reuse keeps recently used buffers warm
// in cache; the critical section is a pointer push/pop under one mutex.

package pool

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mcp/api"
)

// FixedBytePool holds count buffers of exactly size bytes each.
type FixedBytePool struct {
	mu        sync.Mutex
	free      [][]byte
	size      int
	count     int
	destroyed bool
	log       *logrus.Entry
}

var _ api.BytePool = (*FixedBytePool)(nil)

// NewFixedBytePool allocates all count buffers up front.
func NewFixedBytePool(size, count int) (*FixedBytePool, error) {
	if size <= 0 || count <= 0 {
		return nil, api.ErrInvalidParameter
	}
	p := &FixedBytePool{
		free:  make([][]byte, 0, count),
		size:  size,
		count: count,
		log:   logrus.NewEntry(logrus.StandardLogger()).WithField("component", "bytepool"),
	}
	for i := 0; i < count; i++ {
		p.free = append(p.free, make([]byte, size))
	}
	return p, nil
}

// Acquire pops a buffer from the free list. When the list is empty it
// fails with ErrPoolEmpty rather than allocating: bounded memory is the
// contract.
func (p *FixedBytePool) Acquire() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, api.ErrPoolEmpty
	}
	n := len(p.free)
	if n == 0 {
		return nil, api.ErrPoolEmpty
	}
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	return buf, nil
}

// Release pushes buf back. buf must originate from this pool's Acquire;
// releasing after Destroy is a program error and is dropped with a log.
func (p *FixedBytePool) Release(buf []byte) {
	if len(buf) != p.size {
		p.log.WithField("len", len(buf)).Error("released buffer of foreign size; dropped")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		p.log.Error("release after pool destroy; dropped")
		return
	}
	if len(p.free) >= p.count {
		p.log.Error("release of untracked buffer; dropped")
		return
	}
	p.free = append(p.free, buf)
}

// BufferSize reports the fixed buffer size.
func (p *FixedBytePool) BufferSize() int { return p.size }

// Available reports the current free-list depth.
func (p *FixedBytePool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Destroy drops the free list. Outstanding buffers are leaked and logged.
func (p *FixedBytePool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	if leaked := p.count - len(p.free); leaked > 0 {
		p.log.WithField("buffers", leaked).Warn("destroying pool with outstanding buffers")
	}
	p.free = nil
	p.destroyed = true
}
