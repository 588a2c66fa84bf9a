// File: arena/alloc.go
// Author: momentics <momentics@gmail.com>
//
// Typed allocation helpers on top of the raw byte allocator.

package arena

import "unsafe"

// NewOf allocates a zeroed T inside the arena. The pointer is valid until
// the next Reset or Destroy; T must not be retained past that point.
// Arena storage is invisible to the garbage collector: if T carries
// references to heap objects, pin each one with KeepAlive.
func NewOf[T any](a *Arena) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return &zero, nil
	}
	buf, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(buf))), nil
}

// Copy duplicates src into arena storage.
func Copy(a *Arena, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	dst, err := a.Alloc(len(src))
	if err != nil {
		return nil, err
	}
	copy(dst, src)
	return dst, nil
}

// String duplicates s into arena storage and returns it as a string header
// over the arena bytes. The string dies with the arena cycle.
func String(a *Arena, s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	dst, err := a.Alloc(len(s))
	if err != nil {
		return "", err
	}
	copy(dst, s)
	return unsafe.String(unsafe.SliceData(dst), len(dst)), nil
}
