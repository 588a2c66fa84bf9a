// File: internal/concurrency/pool_test.go
// Author: momentics <momentics@gmail.com>

package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mcp/api"
	"github.com/momentics/hioload-mcp/arena"
)

func TestPool_SubmitAndDrain(t *testing.T) {
	p, err := NewPool(4, 256)
	require.NoError(t, err)
	defer p.Destroy()

	const n = 1000
	var ran atomic.Int64
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(func(any) { ran.Add(1) }, nil))
	}
	require.True(t, p.Wait(5000))
	require.Equal(t, int64(n), ran.Load())

	stats := p.Stats()
	require.Equal(t, uint64(n), stats.Submitted)
	require.Equal(t, uint64(n), stats.Completed)
	require.Equal(t, uint64(0), stats.Failed)
}

func TestPool_CountersReconcile(t *testing.T) {
	p, err := NewPool(4, 128)
	require.NoError(t, err)
	defer p.Destroy()

	for i := 0; i < 500; i++ {
		_ = p.Submit(func(any) {}, nil)
	}
	require.True(t, p.Wait(5000))

	s := p.Stats()
	require.Equal(t, s.Submitted, s.Completed+s.Failed+s.Active+s.Queued)

	// Per-worker executed totals include stolen tasks and sum to the
	// pool-wide completed count.
	var executed uint64
	for _, w := range p.WorkerStats() {
		require.LessOrEqual(t, w.Stolen, w.Executed)
		executed += w.Executed
	}
	require.Equal(t, s.Completed+s.Failed, executed)
}

// TestPool_QueueFullBackpressure is the (threads=1, queue=2) scenario: a
// blocking task occupies the worker while two queued tasks fill the deque;
// the next submit fails with QueueFull until the blocker releases.
func TestPool_QueueFullBackpressure(t *testing.T) {
	p, err := NewPool(1, 2)
	require.NoError(t, err)
	defer p.Destroy()

	release := make(chan struct{})
	started := make(chan struct{})
	var ran atomic.Int64

	require.NoError(t, p.Submit(func(any) {
		close(started)
		<-release
	}, nil))
	<-started

	require.NoError(t, p.Submit(func(any) { ran.Add(1) }, nil))
	require.NoError(t, p.Submit(func(any) { ran.Add(1) }, nil))

	err = p.Submit(func(any) { ran.Add(1) }, nil)
	require.ErrorIs(t, err, api.ErrQueueFull)

	close(release)
	require.True(t, p.Wait(5000))

	// After release the queued tasks run and a new submit succeeds.
	require.NoError(t, p.Submit(func(any) { ran.Add(1) }, nil))
	require.True(t, p.Wait(5000))
	require.Equal(t, int64(3), ran.Load())
}

func TestPool_ShrinkAndGrow(t *testing.T) {
	p, err := NewPool(8, 64)
	require.NoError(t, err)
	defer p.Destroy()

	require.NoError(t, p.Resize(2))
	require.Equal(t, 2, p.NumWorkers())

	// The six excess workers observe shouldExit at their next idle point.
	deadline := time.Now().Add(2 * time.Second)
	for {
		running := 0
		for _, w := range p.WorkerStats() {
			if w.Running {
				running++
			}
		}
		if running == 2 || time.Now().After(deadline) {
			require.Equal(t, 2, running)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Submissions balance across the two remaining deques only. The two
	// 64-slot deques hold all 128 tasks even if no worker drains them.
	var mu sync.Mutex
	hit := map[int]int{}
	var wg sync.WaitGroup
	for i := 0; i < 128; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(any) {
			defer wg.Done()
			for idx, w := range p.workers {
				if w.active.Load() {
					mu.Lock()
					hit[idx]++
					mu.Unlock()
				}
			}
		}, nil))
	}
	wg.Wait()
	mu.Lock()
	for idx := range hit {
		require.Less(t, idx, 2, "task observed on a shrunk worker")
	}
	mu.Unlock()

	before := p.WorkerStats()
	require.NoError(t, p.Resize(4))
	require.Equal(t, 4, p.NumWorkers())
	require.True(t, p.Wait(5000))

	// Restarted workers keep their slots; accumulated statistics are not
	// double-counted across the restart.
	after := p.WorkerStats()
	for i := 2; i < 4; i++ {
		require.GreaterOrEqual(t, after[i].Executed, before[i].Executed)
	}
}

func TestPool_ResizeClamps(t *testing.T) {
	p, err := NewPool(4, 64)
	require.NoError(t, err)
	defer p.Destroy()

	require.NoError(t, p.Resize(100))
	require.Equal(t, 4, p.NumWorkers())
	require.NoError(t, p.Resize(0))
	require.Equal(t, 1, p.NumWorkers())
}

func TestPool_SubmitAfterDestroy(t *testing.T) {
	p, err := NewPool(2, 64)
	require.NoError(t, err)
	require.NoError(t, p.Destroy())

	err = p.Submit(func(any) {}, nil)
	require.ErrorIs(t, err, api.ErrPoolShuttingDown)

	err = p.Destroy()
	require.ErrorIs(t, err, api.ErrPoolDestroyed)
}

func TestPool_PanicCountsAsFailed(t *testing.T) {
	p, err := NewPool(2, 64)
	require.NoError(t, err)
	defer p.Destroy()

	require.NoError(t, p.Submit(func(any) { panic("boom") }, nil))
	require.NoError(t, p.Submit(func(any) {}, nil))
	require.True(t, p.Wait(5000))

	s := p.Stats()
	require.Equal(t, uint64(1), s.Failed)
	require.Equal(t, uint64(1), s.Completed)
}

func TestPool_WorkerArenaBound(t *testing.T) {
	p, err := NewPool(2, 64)
	require.NoError(t, err)
	defer p.Destroy()

	got := make(chan bool, 1)
	require.NoError(t, p.Submit(func(any) {
		got <- arena.ExistsOnCurrentThread()
	}, nil))
	require.True(t, <-got)

	// Off-worker goroutines see no arena.
	require.False(t, arena.ExistsOnCurrentThread())
}

func TestPool_StealHappens(t *testing.T) {
	p, err := NewPool(2, 1024)
	require.NoError(t, err)
	defer p.Destroy()

	// Pin worker 0 with a blocker; its deque keeps receiving round-robin
	// submissions that only worker 1 can take, by stealing.
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func(any) {
		close(started)
		<-release
	}, nil))
	<-started

	const n = 100
	var ran atomic.Int64
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(func(any) { ran.Add(1) }, nil))
	}
	deadline := time.Now().Add(5 * time.Second)
	for ran.Load() < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, int64(n), ran.Load())

	var stolen uint64
	for _, w := range p.WorkerStats() {
		stolen += w.Stolen
	}
	require.Greater(t, stolen, uint64(0), "idle worker never stole from the pinned one")
	close(release)
}

func TestPool_SmartAdjustCooldown(t *testing.T) {
	p, err := NewPool(4, 64, WithAdjustCooldown(time.Hour))
	require.NoError(t, err)
	defer p.Destroy()

	// First call samples; immediately repeated calls are inside the
	// cooldown and never resize.
	p.SmartAdjust()
	n := p.NumWorkers()
	for i := 0; i < 10; i++ {
		require.False(t, p.SmartAdjust())
	}
	require.Equal(t, n, p.NumWorkers())
}
