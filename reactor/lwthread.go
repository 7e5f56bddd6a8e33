//go:build linux

package reactor

import (
	"sync/atomic"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/fdgroup"
)

// TSCStats is a busy/idle tick pair, the unit every reactor- and
// thread-level accounting figure is expressed in (spec.md §3/§6).
type TSCStats struct {
	Busy uint64
	Idle uint64
}

// lwState is the mutable state behind a Thread handle. A lightweight
// thread is on exactly one reactor's list, or in flight via a scheduling
// Event, at any instant (spec.md §3); Lcore == AnyLcore iff in flight.
type lwState struct {
	threadID     uint64
	cpumask      cpuset.Set
	initialLcore atomic.Uint32 // AnyLcore until first _schedule_thread
	bound        bool          // bound threads never migrate

	// Mutable, owned by whichever reactor currently holds this LW on its
	// list (or by the scheduling Event in flight between reactors).
	lcore      atomic.Uint32
	resched    atomic.Bool
	tscStart   uint64
	current    TSCStats // delta since the last scheduling-pass gather
	total      TSCStats // cumulative since the thread was created
	gatherSnap TSCStats // total as of the last gather, for computing current
	intFdGroup fdgroup.Group // this LW's own interrupt-mode fd-group, may be nil

	runtime ThreadRuntime
}

// Thread is the exported handle to a lightweight thread.
type Thread struct {
	state *lwState
}

var nextThreadID atomic.Uint64

// NewThread constructs a Thread handle for a freshly created LW, to be
// handed to schedule_thread. runtime is the Thread Runtime implementation
// that will execute this LW's pollers/messages.
func NewThread(mask cpuset.Set, bound bool, intFdGroup fdgroup.Group, runtime ThreadRuntime) *Thread {
	s := &lwState{
		threadID:   nextThreadID.Add(1),
		cpumask:    mask,
		bound:      bound,
		intFdGroup: intFdGroup,
		runtime:    runtime,
	}
	s.initialLcore.Store(AnyLcore)
	s.lcore.Store(AnyLcore)
	return &Thread{state: s}
}

// ID returns the thread's stable identifier.
func (t *Thread) ID() uint64 { return t.state.threadID }

// CPUMask returns the legal set of lcores this thread may run on.
func (t *Thread) CPUMask() cpuset.Set { return t.state.cpumask }

// InitialLcore returns the first core this thread ever ran on, or
// AnyLcore if it has never been scheduled.
func (t *Thread) InitialLcore() uint32 { return t.state.initialLcore.Load() }

// Lcore returns the thread's current owning reactor, or AnyLcore while in flight.
func (t *Thread) Lcore() uint32 { return t.state.lcore.Load() }

// IsBound reports whether the thread is pinned and therefore never migrates.
func (t *Thread) IsBound() bool { return t.state.bound }

// Resched reports whether a reschedule has been requested.
func (t *Thread) Resched() bool { return t.state.resched.Load() }

// Stats returns a snapshot of the thread's current and total busy/idle stats.
func (t *Thread) Stats() (current, total TSCStats) {
	return t.state.current, t.state.total
}

// requestReschedule implements request_thread_reschedule (spec.md §4.4):
// called by the Thread Runtime on the thread's own current reactor. Sets
// resched=true, lcore=ANY, and wakes resched_fd if the reactor is in
// interrupt mode.
func (r *Reactor) requestReschedule(t *Thread) {
	t.state.resched.Store(true)
	t.state.lcore.Store(AnyLcore)
	if r.InInterrupt() {
		if err := writeWake(r.reschedFd); err != nil {
			r.logWakeError("resched_fd", err)
		}
	}
}
