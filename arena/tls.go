// File: arena/tls.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Goroutine-local arena binding. Pool workers bind their arena once at
// startup; handlers running on that worker reach it ambiently without
// plumbing. There is deliberately no lazy creation here: an unbound
// goroutine sees "no arena", never a silently leaked one.

package arena

import "github.com/timandy/routine"

var current = routine.NewThreadLocal[*Arena]()

// Bind attaches a to the calling goroutine. Called by the pool worker at
// startup, paired with Unbind at exit.
func Bind(a *Arena) {
	current.Set(a)
}

// Unbind detaches the calling goroutine's arena.
func Unbind() {
	current.Remove()
}

// ExistsOnCurrentThread reports whether the calling goroutine has a bound
// arena.
func ExistsOnCurrentThread() bool {
	return current.Get() != nil
}

// Current returns the bound arena. It panics when called off a pool
// worker; use AllocIfExists for the tolerant variant.
func Current() *Arena {
	a := current.Get()
	if a == nil {
		panic("arena: no arena bound to current goroutine")
	}
	return a
}

// AllocIfExists allocates from the bound arena, or reports ok=false when
// the calling goroutine has none.
func AllocIfExists(n int) (buf []byte, ok bool) {
	a := current.Get()
	if a == nil {
		return nil, false
	}
	b, err := a.Alloc(n)
	if err != nil {
		return nil, false
	}
	return b, true
}
