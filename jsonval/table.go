// File: jsonval/table.go
// Package jsonval
// Author: momentics <momentics@gmail.com>
//
// Open-addressed member table for object nodes. Buckets and keys live on
// the general heap; values point at arena-resident nodes. Insertion order
// is preserved for deterministic encoding.

package jsonval

import (
	"strings"

	"github.com/dolthub/maphash"
)

const (
	tableInitialBuckets = 8
	tableMaxLoadNum     = 3 // grow past 3/4 occupancy
	tableMaxLoadDen     = 4
)

type bucket struct {
	hash uint64
	key  string
	val  *Node
	used bool
}

type table struct {
	hasher  maphash.Hasher[string]
	buckets []bucket
	mask    uint64
	count   int
	keys    []string
}

func newTable() *table {
	return &table{
		hasher:  maphash.NewHasher[string](),
		buckets: make([]bucket, tableInitialBuckets),
		mask:    tableInitialBuckets - 1,
	}
}

func (t *table) get(key string) (*Node, bool) {
	h := t.hasher.Hash(key)
	for i := h & t.mask; ; i = (i + 1) & t.mask {
		b := &t.buckets[i]
		if !b.used {
			return nil, false
		}
		if b.hash == h && b.key == key {
			return b.val, true
		}
	}
}

func (t *table) set(key string, val *Node) {
	if (t.count+1)*tableMaxLoadDen > len(t.buckets)*tableMaxLoadNum {
		t.grow()
	}
	h := t.hasher.Hash(key)
	for i := h & t.mask; ; i = (i + 1) & t.mask {
		b := &t.buckets[i]
		if !b.used {
			owned := strings.Clone(key)
			t.buckets[i] = bucket{hash: h, key: owned, val: val, used: true}
			t.keys = append(t.keys, owned)
			t.count++
			return
		}
		if b.hash == h && b.key == key {
			b.val = val
			return
		}
	}
}

func (t *table) grow() {
	old := t.buckets
	t.buckets = make([]bucket, len(old)*2)
	t.mask = uint64(len(t.buckets) - 1)
	for _, b := range old {
		if !b.used {
			continue
		}
		for i := b.hash & t.mask; ; i = (i + 1) & t.mask {
			if !t.buckets[i].used {
				t.buckets[i] = b
				break
			}
		}
	}
}
