//go:build linux

package reactor

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/corelock"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/cpuset"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/ctxswitch"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/fdgroup"
	"github.com/makesoftwaresafe/spdk-sub001/reactor/obslog"
)

// Config configures a Pool at construction (Open Question #1: ring
// capacity is tunable, defaulting to the spec'd constant).
type Config struct {
	Lcores          []uint32
	RingCapacity    int // defaults to DefaultRingCapacity if zero
	IsolatedCores   cpuset.Set
	SchedulingLcore uint32 // must be a member of Lcores
	SchedPeriodTSC  uint64 // 0 disables periodic scheduling
	LockFilePrefix  string // empty disables core-claim locking
	Logger          *obslog.Logger
	CtxSwitchPeriod uint64 // 0 disables the context-switch monitor
}

// Pool is the densely-indexed reactor array (spec.md §3 "Reactor Pool").
// The set of valid cores is fixed for the pool's lifetime.
type Pool struct {
	reactors map[uint32]*Reactor
	order    []uint32 // lcore order, ascending, for for_each_reactor

	mempool *EventMempool

	schedulingLcore atomic.Uint32
	schedState      *schedDriverState

	isolated cpuset.Set

	claims []*corelock.Claim

	ctxswitch *ctxswitch.Monitor

	running atomic.Bool

	stoppingMu sync.Mutex
	stopping   bool

	onInterruptModeChange func(lcore uint32, interrupt bool)

	log *obslog.Logger
}

// NewPool constructs a Pool and every Reactor in it. newFgrp is called once
// per lcore to build that reactor's fd-group; pass nil to run that reactor
// purely in polling mode (no interrupt-mode support, spec.md §4.3 NOTSUP).
func NewPool(cfg Config, newFgrp func(lcore uint32) (fdgroup.Group, error)) (*Pool, error) {
	if len(cfg.Lcores) == 0 {
		return nil, fmt.Errorf("reactor: pool requires at least one lcore")
	}
	ringCap := cfg.RingCapacity
	if ringCap == 0 {
		ringCap = DefaultRingCapacity
	}
	log := cfg.Logger
	if log == nil {
		log = obslog.NewNop()
	}

	p := &Pool{
		reactors: make(map[uint32]*Reactor, len(cfg.Lcores)),
		isolated: cfg.IsolatedCores,
		log:      log,
	}
	p.schedulingLcore.Store(cfg.SchedulingLcore)
	p.schedState = newSchedDriverState(cfg.SchedPeriodTSC)

	if cfg.LockFilePrefix != "" {
		for _, lc := range cfg.Lcores {
			claim, err := corelock.Acquire(cfg.LockFilePrefix, int(lc))
			if err != nil {
				p.releaseClaims()
				if errors.Is(err, unix.EWOULDBLOCK) {
					return nil, fmt.Errorf("%w: lcore %d: %w", ErrCoreClaimConflict, lc, err)
				}
				return nil, fmt.Errorf("reactor: %w", err)
			}
			p.claims = append(p.claims, claim)
		}
	}

	if cfg.CtxSwitchPeriod != 0 {
		p.ctxswitch = ctxswitch.NewMonitor(cfg.CtxSwitchPeriod, log)
	}

	p.mempool = NewEventMempool(ringCap * len(cfg.Lcores))

	for _, lc := range cfg.Lcores {
		var fgrp fdgroup.Group
		var err error
		if newFgrp != nil {
			fgrp, err = newFgrp(lc)
			if err != nil {
				p.releaseClaims()
				return nil, err
			}
		}
		r, err := newReactor(lc, p, ringCap, fgrp, log)
		if err != nil {
			p.releaseClaims()
			return nil, err
		}
		p.reactors[lc] = r
		p.order = append(p.order, lc)
	}

	// Lcores may arrive in any order; keep order ascending (lcore order,
	// spec.md §3).
	slices.Sort(p.order)

	return p, nil
}

func (p *Pool) releaseClaims() {
	for _, c := range p.claims {
		_ = c.Release()
	}
	p.claims = nil
}

// Reactor returns the reactor owning lcore, or nil if lcore is not valid.
func (p *Pool) Reactor(lcore uint32) *Reactor {
	return p.reactors[lcore]
}

// Lcores returns the valid lcores in ascending order.
func (p *Pool) Lcores() []uint32 {
	return append([]uint32(nil), p.order...)
}

// SchedulingLcore returns the lcore currently designated to run the
// periodic scheduling pass.
func (p *Pool) SchedulingLcore() uint32 {
	return p.schedulingLcore.Load()
}

// SetSchedulingLcore changes the designated scheduling reactor. Per
// spec.md §3 invariant 5, this is only legal between passes.
func (p *Pool) SetSchedulingLcore(lcore uint32) error {
	if _, ok := p.reactors[lcore]; !ok {
		return ErrCoreClaimConflict
	}
	if !p.schedState.tryLock() {
		return fmt.Errorf("reactor: cannot change scheduling reactor mid-pass")
	}
	defer p.schedState.unlock()
	p.schedulingLcore.Store(lcore)
	return nil
}

// OnInterruptModeChange registers a callback invoked after every successful
// interrupt-mode transition (supplemented feature #4).
func (p *Pool) OnInterruptModeChange(fn func(lcore uint32, interrupt bool)) {
	p.onInterruptModeChange = fn
}

func (p *Pool) isRunning() bool {
	return p.running.Load()
}

// Run starts every reactor's main loop on its own goroutine (callers are
// expected to have already pinned each goroutine to its lcore via
// runtime.LockOSThread + sched_setaffinity before calling Run, or to do so
// as the first action inside a wrapping goroutine).
func (p *Pool) Run() {
	p.running.Store(true)
	var wg sync.WaitGroup
	for _, lc := range p.order {
		r := p.reactors[lc]
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run()
		}()
	}
	wg.Wait()
}

// WaitReady blocks until every valid reactor has entered its main loop at
// least once (supplemented feature #2).
func (p *Pool) WaitReady() {
	for _, lc := range p.order {
		<-p.reactors[lc].readyCh
	}
}

// Shutdown raises the stopping_reactors latch (so no new for_each_reactor
// traversal starts), flips the pool's running flag (so every reactor's main
// loop exits after its current iteration and begins its drain), waits for
// all reactors to report StateTerminated, then releases core-claim files.
func (p *Pool) Shutdown() {
	p.beginStopping()
	p.running.Store(false)
	for _, lc := range p.order {
		r := p.reactors[lc]
		for r.state.Load() != StateTerminated {
			// Reactors in interrupt mode need a final wake to notice the
			// running flag flipped.
			if r.inInterrupt.Load() {
				_ = writeWake(r.eventsFd)
			}
		}
	}
	p.releaseClaims()
}

// Stats returns a snapshot of every reactor's busy/idle totals, keyed by lcore.
func (p *Pool) Stats() map[uint32]TSCStats {
	out := make(map[uint32]TSCStats, len(p.order))
	for _, lc := range p.order {
		out[lc] = p.reactors[lc].Stats()
	}
	return out
}

// maybeRunSchedulingPass kicks off the periodic scheduling pass if caller
// is the scheduling reactor, the period has elapsed, and no pass is
// already in progress (spec.md §4.2, §4.5).
func (p *Pool) maybeRunSchedulingPass(caller *Reactor) {
	if p.schedState.periodTSC == 0 {
		return
	}
	if caller.lcore != p.schedulingLcore.Load() {
		return
	}
	now := tscNow()
	if !p.schedState.periodElapsed(now) {
		return
	}
	if !p.schedState.tryLock() {
		return
	}
	p.schedState.lastSched = now
	caller.recordTrace(TracePeriodStart)
	p.runGatherPhase(caller)
}
