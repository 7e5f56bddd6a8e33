//go:build linux

package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
)

func TestNewThreadStartsUnscheduled(t *testing.T) {
	rt := &fakeRuntime{}
	th := NewThread(cpuset.Set{}, false, nil, rt)

	assert.Equal(t, AnyLcore, th.Lcore())
	assert.Equal(t, AnyLcore, th.InitialLcore())
	assert.False(t, th.IsBound())
	assert.False(t, th.Resched())
}

func TestNewThreadAssignsUniqueIDs(t *testing.T) {
	rt := &fakeRuntime{}
	a := NewThread(cpuset.Set{}, false, nil, rt)
	b := NewThread(cpuset.Set{}, false, nil, rt)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestRequestRescheduleMarksThreadInFlight(t *testing.T) {
	r := &Reactor{state: newFastState()}
	rt := &fakeRuntime{}
	th := NewThread(cpuset.Set{}, false, nil, rt)
	th.state.lcore.Store(0)

	r.requestReschedule(th)

	assert.True(t, th.Resched())
	assert.Equal(t, AnyLcore, th.Lcore())
}

func TestThreadStatsStartAtZero(t *testing.T) {
	rt := &fakeRuntime{}
	th := NewThread(cpuset.Set{}, false, nil, rt)
	current, total := th.Stats()
	assert.Zero(t, current.Busy)
	assert.Zero(t, total.Busy)
}
