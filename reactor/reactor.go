//go:build linux

package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/fdgroup"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/obslog"
)

// DrainBatchSize is the maximum number of events drained from the ring per
// event_queue_run_batch call (spec.md §4.1, original_source's
// SPDK_EVENT_BATCH_SIZE).
const DrainBatchSize = 8

// traceHistoryLen bounds the reactor's small postmortem trace ring
// (supplemented feature #1, grounded on spdk_reactor's trace history).
const traceHistoryLen = 64

// TraceKind enumerates the four minimum trace points required by spec.md §6.
type TraceKind int

const (
	TracePeriodStart TraceKind = iota
	TraceCoreStats
	TraceThreadStats
	TraceThreadMove
)

// Reactor is a pinned worker bound to one lcore. It owns an event ring, a
// list of lightweight threads, a notify-cpuset, and, when constructed with
// an fd-group, the events_fd/resched_fd pair that backs interrupt mode.
type Reactor struct {
	lcore   uint32
	isValid bool

	pool *Pool

	mu      sync.Mutex // protects threads list; only touched by this reactor and for_each_reactor callbacks executed ON this reactor
	threads []*Thread

	ring *eventRing

	tscLast         atomic.Uint64
	busyTSC         atomic.Uint64
	idleTSC         atomic.Uint64
	lastRusageCheck atomic.Uint64

	// notifyCpuset bit T set means: when this reactor produces an event
	// targeting reactor T, it must write to T's events_fd. Mutated only
	// during mode transitions driven by the scheduling reactor, each
	// reactor's copy on that reactor's own goroutine via for_each_reactor
	// (spec.md §5); read by event_call on every core.
	notifyCpuset atomic.Pointer[cpuset.Set]

	state *fastState

	inInterrupt            atomic.Bool
	newInInterrupt         atomic.Bool
	setInterruptInProgress atomic.Bool

	fgrp      fdgroup.Group
	eventsFd  int
	reschedFd int

	traceMu      sync.Mutex
	traceHistory [traceHistoryLen]TraceKind
	traceHead    int

	log *obslog.Logger

	readyOnce sync.Once
	readyCh   chan struct{}
}

func newReactor(lcore uint32, pool *Pool, ringCapacity int, fgrp fdgroup.Group, log *obslog.Logger) (*Reactor, error) {
	r := &Reactor{
		lcore:   lcore,
		isValid: true,
		pool:    pool,
		ring:    newEventRing(ringCapacity),
		state:   newFastState(),
		fgrp:    fgrp,
		log:     log,
		readyCh: make(chan struct{}),
	}
	empty := cpuset.Set{}
	r.notifyCpuset.Store(&empty)
	r.tscLast.Store(tscNow())

	if fgrp != nil {
		eventsFd, err := createWakeFd()
		if err != nil {
			return nil, err
		}
		reschedFd, err := createWakeFd()
		if err != nil {
			_ = closeWakeFd(eventsFd)
			return nil, err
		}
		r.eventsFd = eventsFd
		r.reschedFd = reschedFd
		if err := fgrp.AddFD(eventsFd, fdgroup.EventRead, func(fdgroup.Events) {
			_, _ = drainWake(eventsFd)
			r.runEventBatch()
		}); err != nil {
			return nil, err
		}
		if err := fgrp.AddFD(reschedFd, fdgroup.EventRead, func(fdgroup.Events) {
			_, _ = drainWake(reschedFd)
			r.postProcessThreads()
		}); err != nil {
			return nil, err
		}
	} else {
		r.eventsFd = -1
		r.reschedFd = -1
	}

	return r, nil
}

func closeWakeFd(fd int) error {
	if fd < 0 {
		return nil
	}
	return closeFD(fd)
}

// Lcore returns this reactor's lcore index.
func (r *Reactor) Lcore() uint32 { return r.lcore }

// InInterrupt reports whether the reactor is currently in interrupt mode.
func (r *Reactor) InInterrupt() bool { return r.inInterrupt.Load() }

// notifyCpusetContains reports whether this reactor must notify target's
// events_fd when producing for it.
func (r *Reactor) notifyCpusetContains(target uint32) bool {
	set := r.notifyCpuset.Load()
	return set.IsSet(int(target))
}

func (r *Reactor) setNotifyCpuset(target uint32, value bool) {
	old := r.notifyCpuset.Load()
	next := *old
	if value {
		next.Set(int(target))
	} else {
		next.Clear(int(target))
	}
	r.notifyCpuset.Store(&next)
}

func (r *Reactor) logWakeError(fdName string, err error) {
	r.log.Warn("wake write failed", "lcore", r.lcore, "fd", fdName, "error", err)
}

func (r *Reactor) recordTrace(k TraceKind) {
	r.traceMu.Lock()
	r.traceHistory[r.traceHead%traceHistoryLen] = k
	r.traceHead++
	r.traceMu.Unlock()
	r.log.Debug("trace", "lcore", r.lcore, "trace_id", int(k))
}

// TraceHistory returns the most recent trace kinds recorded, oldest first,
// for diagnostics/tests (supplemented feature #1).
func (r *Reactor) TraceHistory() []TraceKind {
	r.traceMu.Lock()
	defer r.traceMu.Unlock()
	n := r.traceHead
	if n > traceHistoryLen {
		n = traceHistoryLen
	}
	out := make([]TraceKind, n)
	for i := 0; i < n; i++ {
		idx := (r.traceHead - n + i) % traceHistoryLen
		out[i] = r.traceHistory[idx]
	}
	return out
}

// runEventBatch implements event_queue_run_batch (spec.md §4.1): dequeues
// up to DrainBatchSize events, self-waking on re-arm if still non-empty
// while in interrupt mode, then runs each handler with no thread-local
// context, and bulk-frees the batch back to the mempool.
func (r *Reactor) runEventBatch() int {
	var batch [DrainBatchSize]*Event
	n := 0
	for n < DrainBatchSize {
		e, ok := r.ring.Dequeue()
		if !ok {
			break
		}
		batch[n] = e
		n++
	}
	if n == 0 {
		return 0
	}

	if r.inInterrupt.Load() && r.ring.Len() > 0 {
		if err := writeWake(r.eventsFd); err != nil {
			r.logWakeError("events_fd", err)
		}
	}

	for i := 0; i < n; i++ {
		e := batch[i]
		fn := e.fn
		arg1, arg2 := e.arg1, e.arg2
		if fn != nil {
			fn(arg1, arg2)
		}
	}

	r.pool.mempool.FreeBatch(batch[:n])
	return n
}

// runPollIteration implements _reactor_run (spec.md §4.2).
func (r *Reactor) runPollIteration() {
	r.runEventBatch()

	now := tscNow()
	r.mu.Lock()
	empty := len(r.threads) == 0
	r.mu.Unlock()

	if empty {
		r.idleTSC.Add(now - r.tscLast.Load())
		r.tscLast.Store(now)
		return
	}

	r.mu.Lock()
	threads := append([]*Thread(nil), r.threads...)
	r.mu.Unlock()

	lastTSC := r.tscLast.Load()
	for _, t := range threads {
		did := t.state.runtime.Poll(t, 0, lastTSC)
		nowAfter := tscNow()
		delta := nowAfter - lastTSC
		if did > 0 {
			r.busyTSC.Add(delta)
			t.state.total.Busy += delta
		} else {
			r.idleTSC.Add(delta)
			t.state.total.Idle += delta
		}
		lastTSC = nowAfter
	}
	r.tscLast.Store(lastTSC)

	r.postProcessThreads()
}

// runInterruptIteration implements reactor_interrupt_run (spec.md §4.2):
// blocks in fgrp.wait, relying on the events_fd/resched_fd/nested LW
// fd-group callbacks registered at construction and nest-time to drive
// runEventBatch/postProcessThreads.
func (r *Reactor) runInterruptIteration() {
	r.state.Store(StateSleeping)
	_, _ = r.fgrp.Wait(-1)
	r.state.Store(StateRunning)
}

// Run is the reactor's main loop (spec.md §4.2 "Main loop"). It runs until
// the pool's global state leaves running.
func (r *Reactor) Run() {
	r.state.Store(StateRunning)
	r.readyOnce.Do(func() { close(r.readyCh) })

	for r.pool.isRunning() {
		if r.inInterrupt.Load() {
			r.runInterruptIteration()
		} else {
			r.runPollIteration()
		}
		r.maybeSampleRusage()
		r.pool.maybeRunSchedulingPass(r)
	}

	r.drainShutdown()
	r.state.Store(StateTerminated)
}

// drainShutdown implements the shutdown drain (spec.md §4.2): sends
// thread_exit to every still-running LW, then polls remaining ones until
// each reports exited && idle.
func (r *Reactor) drainShutdown() {
	r.mu.Lock()
	threads := append([]*Thread(nil), r.threads...)
	r.mu.Unlock()

	for _, t := range threads {
		t.state.runtime.SendMsg(t, nil) // thread_exit signal; nil fn is the sentinel
	}

	for {
		r.mu.Lock()
		remaining := len(r.threads)
		r.mu.Unlock()
		if remaining == 0 {
			return
		}

		if r.inInterrupt.Load() {
			r.runInterruptIteration()
		} else {
			r.runEventBatch()
			r.mu.Lock()
			snapshot := append([]*Thread(nil), r.threads...)
			r.mu.Unlock()
			lastTSC := r.tscLast.Load()
			for _, t := range snapshot {
				t.state.runtime.Poll(t, 0, lastTSC)
			}
		}
		r.postProcessThreads()
	}
}

func (r *Reactor) maybeSampleRusage() {
	if r.pool.ctxswitch == nil {
		return
	}
	now := tscNow()
	last := r.lastRusageCheck.Load()
	if last != 0 && now-last < r.pool.ctxswitch.SamplePeriodTSC() {
		return
	}
	r.lastRusageCheck.Store(now)
	r.pool.ctxswitch.Sample(r.lcore)
}

// Stats returns this reactor's accumulated busy/idle TSC totals.
func (r *Reactor) Stats() TSCStats {
	return TSCStats{Busy: r.busyTSC.Load(), Idle: r.idleTSC.Load()}
}

// ThreadCount returns the number of LWs currently owned by this reactor.
func (r *Reactor) ThreadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}
