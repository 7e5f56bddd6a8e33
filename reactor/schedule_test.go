//go:build linux

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/sched"
)

func TestPeriodicSchedulingPassGathersCoreStats(t *testing.T) {
	p := newTestPool(t, 0, 1)
	p.schedState.periodTSC = 1 // effectively every iteration, once lastSched is set
	runPool(t, p)

	require.Eventually(t, func() bool {
		p.schedState.mu.Lock()
		defer p.schedState.mu.Unlock()
		return len(p.schedState.coreInfos) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplyMigrationsRefusesIsolatedCore(t *testing.T) {
	p := newTestPool(t, 0, 1)
	p.isolated = cpuset.Of(1)
	runPool(t, p)

	rt := &fakeRuntime{}
	th := NewThread(cpuset.Set{}, false, nil, rt)
	p.ScheduleThread(nil, th)
	require.Eventually(t, func() bool { return th.Lcore() != AnyLcore }, 2*time.Second, 10*time.Millisecond)

	owner := th.Lcore()
	other := uint32(0)
	if owner == 0 {
		other = 1
	}

	infos := []sched.CoreInfo{
		{Lcore: owner, ThreadInfos: []sched.ThreadInfo{{ThreadID: th.ID(), Lcore: other}}},
		{Lcore: other},
	}
	done := make(chan struct{})
	require.True(t, p.schedState.tryLock())
	err := p.Call(owner, nil, func(any, any) {
		p.applyMigrations(p.reactors[owner], infos)
		close(done)
	}, nil, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("applyMigrations never ran")
	}

	assert.Equal(t, owner, th.Lcore(), "a migration touching an isolated core must be refused")
}

func TestApplyMigrationsMovesUnboundThread(t *testing.T) {
	p := newTestPool(t, 0, 1)
	runPool(t, p)

	rt := &fakeRuntime{}
	th := NewThread(cpuset.Set{}, false, nil, rt)
	th.state.lcore.Store(0)
	th.state.initialLcore.Store(0)
	p.reactors[0].mu.Lock()
	p.reactors[0].threads = append(p.reactors[0].threads, th)
	p.reactors[0].mu.Unlock()

	infos := []sched.CoreInfo{
		{Lcore: 0, ThreadInfos: []sched.ThreadInfo{{ThreadID: th.ID(), Lcore: 1}}},
		{Lcore: 1},
	}
	done := make(chan struct{})
	// Sampled inside the event: reactor 0's post-processing clears resched
	// right after this event as it re-places the thread.
	var reschedAfterApply bool
	require.True(t, p.schedState.tryLock())
	err := p.Call(0, nil, func(any, any) {
		p.applyMigrations(p.reactors[0], infos)
		reschedAfterApply = th.Resched()
		close(done)
	}, nil, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("applyMigrations never ran")
	}

	assert.Equal(t, uint32(1), th.Lcore())
	assert.True(t, reschedAfterApply)
}

func TestApplyMigrationsNeverMovesBoundThread(t *testing.T) {
	p := newTestPool(t, 0, 1)
	runPool(t, p)

	rt := &fakeRuntime{}
	th := NewThread(cpuset.Set{}, true, nil, rt)
	th.state.lcore.Store(0)
	p.reactors[0].mu.Lock()
	p.reactors[0].threads = append(p.reactors[0].threads, th)
	p.reactors[0].mu.Unlock()

	infos := []sched.CoreInfo{
		{Lcore: 0, ThreadInfos: []sched.ThreadInfo{{ThreadID: th.ID(), Lcore: 1}}},
		{Lcore: 1},
	}
	done := make(chan struct{})
	require.True(t, p.schedState.tryLock())
	err := p.Call(0, nil, func(any, any) {
		p.applyMigrations(p.reactors[0], infos)
		close(done)
	}, nil, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("applyMigrations never ran")
	}

	assert.Equal(t, uint32(0), th.Lcore(), "a bound thread must never migrate")
}
