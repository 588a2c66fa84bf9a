// File: pool/bytepool_test.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mcp/api"
)

func TestFixedBytePool_Bounded(t *testing.T) {
	p, err := NewFixedBytePool(4096, 4)
	require.NoError(t, err)
	defer p.Destroy()

	bufs := make([][]byte, 0, 4)
	for i := 0; i < 4; i++ {
		b, err := p.Acquire()
		require.NoError(t, err)
		require.Len(t, b, 4096)
		bufs = append(bufs, b)
	}

	_, err = p.Acquire()
	require.ErrorIs(t, err, api.ErrPoolEmpty)

	p.Release(bufs[0])
	b, err := p.Acquire()
	require.NoError(t, err)
	// LIFO: the released buffer comes straight back.
	require.Equal(t, &bufs[0][0], &b[0])
}

func TestFixedBytePool_ForeignSizeDropped(t *testing.T) {
	p, err := NewFixedBytePool(64, 2)
	require.NoError(t, err)
	defer p.Destroy()

	p.Release(make([]byte, 32))
	require.Equal(t, 2, p.Available())
}

func TestFixedBytePool_Concurrent(t *testing.T) {
	p, err := NewFixedBytePool(256, 16)
	require.NoError(t, err)
	defer p.Destroy()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10000; i++ {
				b, err := p.Acquire()
				if err != nil {
					runtime.Gosched()
					continue
				}
				b[0] = byte(i)
				p.Release(b)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 16, p.Available())
}

func TestFixedBytePool_InvalidParams(t *testing.T) {
	_, err := NewFixedBytePool(0, 4)
	require.ErrorIs(t, err, api.ErrInvalidParameter)
	_, err = NewFixedBytePool(64, 0)
	require.ErrorIs(t, err, api.ErrInvalidParameter)
}

func TestSyncPool_Reset(t *testing.T) {
	type scratch struct{ n int }
	sp := NewSyncPool(func() *scratch { return &scratch{} }).
		WithReset(func(s *scratch) { s.n = 0 })

	s := sp.Get()
	s.n = 7
	sp.Put(s)
	require.Equal(t, 0, sp.Get().n)
}
