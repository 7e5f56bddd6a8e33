//go:build linux

package reactor

import (
	"sync"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
)

// nextCoreMu/nextCoreIdx implement the round-robin placement cursor shared
// by every reactor requesting ANY-core placement (spec.md §4.4, original
// source's g_scheduler_mtx/g_next_core).
var (
	nextCoreMu  sync.Mutex
	nextCoreIdx int
)

// postProcessThreads implements reactor_post_process_lw_thread for every LW
// owned by r (spec.md §4.4): a thread that has exited and gone idle is
// removed and dropped; a thread with resched set (and not bound) is removed
// and re-placed via scheduleThread; everything else stays put.
func (r *Reactor) postProcessThreads() {
	r.mu.Lock()
	threads := append([]*Thread(nil), r.threads...)
	r.mu.Unlock()

	for _, t := range threads {
		rt := t.state.runtime

		if rt.IsExited(t) && rt.IsIdle(t) {
			r.removeThread(t)
			r.recordTrace(TraceThreadStats)
			continue
		}

		if t.state.resched.Load() && !t.IsBound() {
			t.state.resched.Store(false)
			r.removeThread(t)
			r.pool.scheduleThread(r, t)
		}
	}
}

// removeThread detaches t from r's list, unnesting its interrupt fd-group
// first if r is currently in interrupt mode (spec.md §4.4
// _reactor_remove_lw_thread).
func (r *Reactor) removeThread(t *Thread) {
	r.mu.Lock()
	for i, cur := range r.threads {
		if cur == t {
			r.threads = append(r.threads[:i], r.threads[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if r.InInterrupt() {
		if fg := t.state.runtime.InterruptFDGroup(t); fg != nil {
			_ = r.fgrp.Unnest(fg)
		}
	}
}

// ScheduleThread implements thread_create's delivery step (spec.md §4.4):
// called by the Thread Runtime to place a freshly created LW onto a
// reactor for the first time. caller is the reactor the calling goroutine
// is running on, or nil if called from outside any reactor (e.g. from an
// API-layer goroutine bootstrapping the pool).
func (p *Pool) ScheduleThread(caller *Reactor, t *Thread) {
	p.scheduleThread(caller, t)
}

// scheduleThread implements _reactor_schedule_thread + _schedule_thread
// (spec.md §4.4 "LW Placement"): resolves a concrete target lcore for t
// (honouring its requested lcore when still legal, otherwise the
// round-robin cursor restricted to t's cpumask), then dispatches a
// scheduling Event to the target so the actual list-insertion always
// happens on the target reactor's own goroutine.
func (p *Pool) scheduleThread(caller *Reactor, t *Thread) {
	requested := t.state.lcore.Load()
	mask := t.state.cpumask

	if caller != nil {
		pollingMask := p.allValidCoresMask()
		pollingMask = cpuset.Xor(pollingMask, *caller.notifyCpuset.Load())

		if requested == AnyLcore {
			valid := cpuset.Intersect(pollingMask, mask)
			if !cpuset.Empty(valid) {
				mask = valid
			} else {
				mask = pollingMask
			}
		} else if !pollingMask.IsSet(int(requested)) {
			requested = AnyLcore
			mask = pollingMask
		}
	}

	target := requested
	if target == AnyLcore {
		target = p.nextCoreIn(mask)
	}
	if _, ok := p.reactors[target]; !ok {
		target = p.order[0]
	}

	_ = p.Call(target, caller, func(any, any) {
		p.placeThread(target, t)
	}, nil, nil)
}

// allValidCoresMask returns a Set with every valid lcore bit set.
func (p *Pool) allValidCoresMask() cpuset.Set {
	var s cpuset.Set
	for _, lc := range p.order {
		s.Set(int(lc))
	}
	return s
}

// nextCoreIn advances the shared round-robin cursor to the next lcore
// present in mask, wrapping around the pool's lcore order.
func (p *Pool) nextCoreIn(mask cpuset.Set) uint32 {
	nextCoreMu.Lock()
	defer nextCoreMu.Unlock()

	n := len(p.order)
	for i := 0; i < n; i++ {
		if nextCoreIdx >= n {
			nextCoreIdx = 0
		}
		lc := p.order[nextCoreIdx]
		nextCoreIdx++
		if mask.IsSet(int(lc)) {
			return lc
		}
	}
	// No lcore in mask is valid; fall back to the cursor's current pick.
	if nextCoreIdx >= n {
		nextCoreIdx = 0
	}
	lc := p.order[nextCoreIdx]
	nextCoreIdx++
	return lc
}

// placeThread runs on the target reactor: finalizes t's placement (spec.md
// §4.4 _schedule_thread), inserting it into the thread list and nesting its
// interrupt fd-group if the target is already in interrupt mode.
func (p *Pool) placeThread(target uint32, t *Thread) {
	r := p.reactors[target]
	if r == nil {
		return
	}

	if t.state.initialLcore.Load() == AnyLcore {
		t.state.initialLcore.Store(target)
	}
	t.state.lcore.Store(target)

	r.mu.Lock()
	r.threads = append(r.threads, t)
	r.mu.Unlock()

	if r.InInterrupt() {
		if fg := t.state.runtime.InterruptFDGroup(t); fg != nil {
			_ = r.fgrp.Nest(fg)
		}
		t.state.runtime.SetInterruptMode(t, true)
	}
}
