// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs: bounded buffer reuse and object recycling.

package api

// BytePool provides reusable []byte buffers for all high-intensity I/O.
// Pools are bounded: Acquire never allocates past the configured count.
type BytePool interface {
	// Acquire returns a buffer of exactly BufferSize bytes,
	// or ErrPoolEmpty when the free list is exhausted.
	Acquire() ([]byte, error)

	// Release returns a buffer previously obtained from Acquire.
	// Releasing a foreign buffer is a program error.
	Release(buf []byte)

	// BufferSize reports the fixed size of every pooled buffer.
	BufferSize() int

	// Destroy frees the free list. Buffers still outstanding are
	// leaked and logged.
	Destroy()
}

// ObjectPool provides generic pooling of Go objects allocated transiently.
type ObjectPool[T any] interface {
	// Get returns an available instance from pool.
	Get() T

	// Put returns an instance for reuse.
	Put(obj T)
}
