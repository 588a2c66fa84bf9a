// File: ratelimit/ratelimit.go
// Package ratelimit implements the sharded sliding-window limiter keyed by
// client identifier.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each shard is a mutex-guarded map plus an LRU list. Window counters
// reset lazily: the first check in a new window zeroes the counter. Total
// tracked clients are bounded; inserting past capacity evicts the
// least-recently-used entry of the target shard.

package ratelimit

import (
	"container/list"
	"sync"
	"time"

	"github.com/dolthub/maphash"

	"github.com/momentics/hioload-mcp/api"
)

const defaultShards = 16

// Config sizes the limiter.
type Config struct {
	Capacity int           // tracked clients; each shard holds ceil(Capacity/shards)
	Window   time.Duration // sliding window duration
	Quota    int           // admitted calls per window per client
	Shards   int           // shard count, rounded up to a power of two
}

type entry struct {
	key     string
	window  int64
	count   int
	lruElem *list.Element
}

type shard struct {
	mu       sync.Mutex
	entries  map[string]*entry
	lru      *list.List // front = most recently used
	capacity int
}

// Limiter is safe for concurrent use by all producers.
type Limiter struct {
	shards []*shard
	mask   uint64
	hasher maphash.Hasher[string]
	window time.Duration
	quota  int
}

var _ api.Limiter = (*Limiter)(nil)

// New builds a limiter from cfg. Zero fields take defaults: 1024 clients,
// 1s window, 100 calls, 16 shards.
func New(cfg Config) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Quota <= 0 {
		cfg.Quota = 100
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	n := 1
	for n < cfg.Shards {
		n <<= 1
	}
	perShard := (cfg.Capacity + n - 1) / n
	if perShard < 1 {
		perShard = 1
	}
	l := &Limiter{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
		hasher: maphash.NewHasher[string](),
		window: cfg.Window,
		quota:  cfg.Quota,
	}
	for i := range l.shards {
		l.shards[i] = &shard{
			entries:  make(map[string]*entry, perShard),
			lru:      list.New(),
			capacity: perShard,
		}
	}
	return l
}

// Check records one call for clientID in the current window and reports
// whether it is admitted.
func (l *Limiter) Check(clientID string) bool {
	sh := l.shards[l.hasher.Hash(clientID)&l.mask]
	win := time.Now().UnixNano() / int64(l.window)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[clientID]
	if !ok {
		if len(sh.entries) >= sh.capacity {
			sh.evictOldest()
		}
		e = &entry{key: clientID, window: win}
		e.lruElem = sh.lru.PushFront(e)
		sh.entries[clientID] = e
	} else {
		sh.lru.MoveToFront(e.lruElem)
		if e.window != win {
			e.window = win
			e.count = 0
		}
	}

	if e.count >= l.quota {
		return false
	}
	e.count++
	return true
}

// Tracked reports the number of clients currently held across all shards.
func (l *Limiter) Tracked() int {
	total := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

func (sh *shard) evictOldest() {
	back := sh.lru.Back()
	if back == nil {
		return
	}
	victim := back.Value.(*entry)
	sh.lru.Remove(back)
	delete(sh.entries, victim.key)
}
