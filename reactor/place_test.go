//go:build linux

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
)

func TestScheduleThreadPlacesOnARunningReactor(t *testing.T) {
	p := newTestPool(t, 0, 1)
	runPool(t, p)

	rt := &fakeRuntime{}
	thread := NewThread(cpuset.Set{}, false, nil, rt)

	p.ScheduleThread(nil, thread)

	require.Eventually(t, func() bool {
		return thread.Lcore() != AnyLcore
	}, 2*time.Second, 10*time.Millisecond)

	lc := thread.Lcore()
	assert.Contains(t, []uint32{0, 1}, lc)
	assert.Equal(t, lc, thread.InitialLcore())
}

func TestScheduleThreadRespectsCPUMask(t *testing.T) {
	p := newTestPool(t, 0, 1, 2)
	runPool(t, p)

	rt := &fakeRuntime{}
	mask := cpuset.Of(2)
	thread := NewThread(mask, false, nil, rt)

	p.ScheduleThread(nil, thread)

	require.Eventually(t, func() bool {
		return thread.Lcore() != AnyLcore
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint32(2), thread.Lcore())
}

func TestPostProcessRemovesExitedIdleThreads(t *testing.T) {
	p := newTestPool(t, 0)
	runPool(t, p)

	rt := &fakeRuntime{}
	thread := NewThread(cpuset.Set{}, false, nil, rt)
	p.ScheduleThread(nil, thread)

	require.Eventually(t, func() bool {
		return thread.Lcore() != AnyLcore
	}, 2*time.Second, 10*time.Millisecond)

	rt.exited.Store(true)
	rt.idle.Store(true)

	require.Eventually(t, func() bool {
		return p.reactors[0].ThreadCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
