// File: jsonval/node.go
// Package jsonval implements the arena-backed JSON document model.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Nodes and string payloads live in the caller's arena and die at its next
// Reset. Array backing vectors and the object table are heap-allocated
// (they resize in ways arenas don't support) and are pinned to the arena
// cycle via KeepAlive, so their lifetime still ends when the owning node
// goes away. There are no destructors; freeing is amortized in the reset.

package jsonval

import (
	"github.com/momentics/hioload-mcp/api"
	"github.com/momentics/hioload-mcp/arena"
)

// Kind discriminates the node variant.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Node is one JSON value. Zero value is the null node.
type Node struct {
	kind    Kind
	boolVal bool
	numVal  float64
	strVal  string
	arr     []*Node
	obj     *table
}

// Kind returns the variant tag.
func (n *Node) Kind() Kind { return n.kind }

// Bool returns the boolean payload (false for other kinds).
func (n *Node) Bool() bool { return n.kind == Bool && n.boolVal }

// Float returns the numeric payload (0 for other kinds).
func (n *Node) Float() float64 {
	if n.kind != Number {
		return 0
	}
	return n.numVal
}

// Str returns the string payload. The bytes are arena-owned.
func (n *Node) Str() string {
	if n.kind != String {
		return ""
	}
	return n.strVal
}

// Len returns the element count of an array or member count of an object.
func (n *Node) Len() int {
	switch n.kind {
	case Array:
		return len(n.arr)
	case Object:
		if n.obj == nil {
			return 0
		}
		return n.obj.count
	default:
		return 0
	}
}

// Index returns the i'th array element, nil out of range.
func (n *Node) Index(i int) *Node {
	if n.kind != Array || i < 0 || i >= len(n.arr) {
		return nil
	}
	return n.arr[i]
}

// Member looks up an object member by key.
func (n *Node) Member(key string) (*Node, bool) {
	if n.kind != Object || n.obj == nil {
		return nil, false
	}
	return n.obj.get(key)
}

// Keys returns the object's keys in insertion order. The slice is the
// table's own; callers must not mutate it.
func (n *Node) Keys() []string {
	if n.kind != Object || n.obj == nil {
		return nil
	}
	return n.obj.keys
}

// NewNull allocates a null node in a.
func NewNull(a *arena.Arena) (*Node, error) {
	return arena.NewOf[Node](a)
}

// NewBool allocates a boolean node in a.
func NewBool(a *arena.Arena, v bool) (*Node, error) {
	n, err := arena.NewOf[Node](a)
	if err != nil {
		return nil, err
	}
	n.kind = Bool
	n.boolVal = v
	return n, nil
}

// NewNumber allocates a number node in a.
func NewNumber(a *arena.Arena, v float64) (*Node, error) {
	n, err := arena.NewOf[Node](a)
	if err != nil {
		return nil, err
	}
	n.kind = Number
	n.numVal = v
	return n, nil
}

// NewString allocates a string node; the bytes are copied into a.
func NewString(a *arena.Arena, s string) (*Node, error) {
	n, err := arena.NewOf[Node](a)
	if err != nil {
		return nil, err
	}
	dup, err := arena.String(a, s)
	if err != nil {
		return nil, err
	}
	n.kind = String
	n.strVal = dup
	return n, nil
}

// newStringNoCopy wraps bytes that already live in the arena.
func newStringNoCopy(a *arena.Arena, s string) (*Node, error) {
	n, err := arena.NewOf[Node](a)
	if err != nil {
		return nil, err
	}
	n.kind = String
	n.strVal = s
	return n, nil
}

// NewArray allocates an empty array node.
func NewArray(a *arena.Arena) (*Node, error) {
	n, err := arena.NewOf[Node](a)
	if err != nil {
		return nil, err
	}
	n.kind = Array
	return n, nil
}

// Append adds child to an array node, growing the heap backing vector.
func (n *Node) Append(a *arena.Arena, child *Node) error {
	if n.kind != Array || child == nil {
		return api.ErrInvalidParameter
	}
	n.arr = append(n.arr, child)
	// Re-pin: append may have moved the backing array.
	a.KeepAlive(n.arr)
	return nil
}

// NewObject allocates an empty object node.
func NewObject(a *arena.Arena) (*Node, error) {
	n, err := arena.NewOf[Node](a)
	if err != nil {
		return nil, err
	}
	n.kind = Object
	t := newTable()
	a.KeepAlive(t)
	n.obj = t
	return n, nil
}

// Set inserts or replaces an object member. The key is copied to the heap
// (object keys outlive probe sequences; the table owns them).
func (n *Node) Set(a *arena.Arena, key string, child *Node) error {
	if n.kind != Object || n.obj == nil || child == nil {
		return api.ErrInvalidParameter
	}
	n.obj.set(key, child)
	return nil
}
