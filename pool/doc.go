// File: pool/doc.go
// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded buffer pooling for socket I/O and generic object recycling.
// The byte pool is a fixed free list: it never allocates past its
// configured count, which is the point — memory stays bounded under load.
// All methods are thread-safe.
package pool
