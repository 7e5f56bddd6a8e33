//go:build linux

package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, lcores ...uint32) *Pool {
	t.Helper()
	p, err := NewPool(Config{Lcores: lcores, RingCapacity: 64}, nil)
	require.NoError(t, err)
	return p
}

func runPool(t *testing.T, p *Pool) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.Run()
		close(done)
	}()
	p.WaitReady()
	t.Cleanup(func() {
		p.Shutdown()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("pool did not shut down in time")
		}
	})
}

func TestNewPoolRejectsEmptyLcores(t *testing.T) {
	_, err := NewPool(Config{}, nil)
	assert.Error(t, err)
}

func TestNewPoolDefaultsRingCapacity(t *testing.T) {
	p, err := NewPool(Config{Lcores: []uint32{0}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, p.Lcores())
	assert.Equal(t, DefaultRingCapacity, p.reactors[0].ring.Capacity())
}

func TestPoolRunWaitReadyShutdown(t *testing.T) {
	p := newTestPool(t, 0, 1)
	runPool(t, p)
	assert.ElementsMatch(t, []uint32{0, 1}, p.Lcores())
}

func TestPoolCallDispatchesToTargetReactor(t *testing.T) {
	p := newTestPool(t, 0, 1)
	runPool(t, p)

	done := make(chan uint32, 1)
	err := p.Call(1, nil, func(any, any) { done <- 1 }, nil, nil)
	require.NoError(t, err)

	select {
	case lc := <-done:
		assert.Equal(t, uint32(1), lc)
	case <-time.After(2 * time.Second):
		t.Fatal("event was never dispatched")
	}
}

func TestPoolCallUnknownLcoreErrors(t *testing.T) {
	p := newTestPool(t, 0)
	runPool(t, p)

	err := p.Call(99, nil, func(any, any) {}, nil, nil)
	var imErr *InterruptModeError
	require.ErrorAs(t, err, &imErr)
	assert.Equal(t, ErrCodeInval, imErr.Code)
}

func TestForEachReactorVisitsEveryReactorInOrder(t *testing.T) {
	p := newTestPool(t, 0, 1, 2)
	runPool(t, p)

	var mu sync.Mutex
	var visited []uint32
	cpl := make(chan struct{})

	err := p.Call(0, nil, func(any, any) {
		_ = p.ForEachReactor(p.reactors[0], func(r *Reactor) {
			mu.Lock()
			visited = append(visited, r.Lcore())
			mu.Unlock()
		}, func() { close(cpl) })
	}, nil, nil)
	require.NoError(t, err)

	select {
	case <-cpl:
	case <-time.After(2 * time.Second):
		t.Fatal("for_each_reactor never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint32{0, 1, 2}, visited)
}

func TestSetSchedulingLcoreRejectsUnknownLcore(t *testing.T) {
	p := newTestPool(t, 0)
	err := p.SetSchedulingLcore(5)
	assert.ErrorIs(t, err, ErrCoreClaimConflict)
}

func TestSetSchedulingLcoreUpdatesValue(t *testing.T) {
	p := newTestPool(t, 0, 1)
	require.NoError(t, p.SetSchedulingLcore(1))
	assert.Equal(t, uint32(1), p.SchedulingLcore())
}
