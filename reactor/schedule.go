//go:build linux

package reactor

import (
	"sync"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/sched"
)

// schedDriverState is the scheduling pass's shared state (spec.md §3
// "Scheduler state"). scheduling_in_progress is modelled as a mutex, not a
// bool, satisfying invariant 5 ("not a bool race") directly.
type schedDriverState struct {
	mu         sync.Mutex
	periodTSC  uint64
	lastSched  uint64
	coreInfos  []sched.CoreInfo
}

func newSchedDriverState(periodTSC uint64) *schedDriverState {
	return &schedDriverState{periodTSC: periodTSC}
}

func (s *schedDriverState) tryLock() bool {
	return s.mu.TryLock()
}

func (s *schedDriverState) unlock() {
	s.mu.Unlock()
}

func (s *schedDriverState) periodElapsed(now uint64) bool {
	return s.lastSched == 0 || now-s.lastSched >= s.periodTSC
}

// gatherInfo builds this reactor's sched.CoreInfo row: TSC deltas since the
// previous gather, plus a thread_infos slot per owned LW, refreshing each
// LW's current_stats as the delta since its last gather snapshot (spec.md
// §4.5 Phase 1).
func (r *Reactor) gatherInfo(prevBusy, prevIdle uint64, isolated bool) sched.CoreInfo {
	busy := r.busyTSC.Load()
	idle := r.idleTSC.Load()

	r.mu.Lock()
	threads := append([]*Thread(nil), r.threads...)
	r.mu.Unlock()

	infos := make([]sched.ThreadInfo, len(threads))
	for i, t := range threads {
		total := t.state.total
		current := TSCStats{
			Busy: total.Busy - t.state.gatherSnap.Busy,
			Idle: total.Idle - t.state.gatherSnap.Idle,
		}
		t.state.current = current
		t.state.gatherSnap = total

		infos[i] = sched.ThreadInfo{
			Lcore:    r.lcore,
			ThreadID: t.state.threadID,
			Current:  sched.Stats{Busy: current.Busy, Idle: current.Idle},
			Total:    sched.Stats{Busy: total.Busy, Idle: total.Idle},
		}
	}

	r.recordTrace(TraceCoreStats)

	return sched.CoreInfo{
		Lcore:          r.lcore,
		CurrentBusyTSC: busy - prevBusy,
		CurrentIdleTSC: idle - prevIdle,
		TotalBusyTSC:   busy,
		TotalIdleTSC:   idle,
		InterruptMode:  r.InInterrupt(),
		Isolated:       isolated,
		ThreadInfos:    infos,
	}
}

// runGatherPhase implements spec.md §4.5 Phase 1, dispatched via
// for_each_reactor: each reactor's sched.CoreInfo row is built by a closure
// that ForEachReactor runs as an Event on that reactor's own goroutine, so
// the plain (non-atomic) per-thread TSCStats fields gatherInfo touches are
// only ever read and mutated by the reactor that already owns them — the
// scheduling reactor never reads them cross-core. Only the final
// aggregation (the cpl callback) runs back on the scheduling reactor.
func (p *Pool) runGatherPhase(caller *Reactor) {
	infos := make([]sched.CoreInfo, 0, len(p.order))
	_ = p.ForEachReactor(caller, func(r *Reactor) {
		prevBusy, prevIdle := uint64(0), uint64(0)
		for _, ci := range p.schedState.coreInfos {
			if ci.Lcore == r.lcore {
				prevBusy, prevIdle = ci.TotalBusyTSC, ci.TotalIdleTSC
			}
		}
		isolated := p.isolated.IsSet(int(r.lcore))
		infos = append(infos, r.gatherInfo(prevBusy, prevIdle, isolated))
	}, func() {
		p.runBalancePhase(caller, infos)
	})
}

// runBalancePhase implements spec.md §4.5 Phase 2.
func (p *Pool) runBalancePhase(caller *Reactor, infos []sched.CoreInfo) {
	if policy := sched.Active(); policy != nil {
		policy.Balance(infos)
	}
	p.runApplyPhase(caller, infos)
}

// runApplyPhase implements spec.md §4.5 Phase 3: interrupt-mode changes
// first, one at a time via reactor_set_interrupt_mode, then thread
// migrations, enforcing the isolated-core guard. scheduling_in_progress
// clears only once every mode change has completed.
//
// Mode-change completions arrive as Events dispatched back onto the
// scheduling reactor's own ring (Open Question #2), so this must not block
// the calling goroutine waiting for them — that goroutine IS the one that
// would have to drain that very event. Instead each completion's callback
// continues the chain by invoking applyNextInterruptChange itself.
func (p *Pool) runApplyPhase(caller *Reactor, infos []sched.CoreInfo) {
	var pending []uint32
	for _, ci := range infos {
		r := p.reactors[ci.Lcore]
		if r != nil && ci.InterruptMode != r.InInterrupt() {
			pending = append(pending, ci.Lcore)
		}
	}
	p.applyNextInterruptChange(caller, infos, pending, 0)
}

func (p *Pool) applyNextInterruptChange(caller *Reactor, infos []sched.CoreInfo, pending []uint32, i int) {
	if i >= len(pending) {
		p.applyMigrations(caller, infos)
		return
	}
	lc := pending[i]
	ci := findCoreInfo(infos, lc)
	if err := p.SetInterruptMode(caller, lc, ci.InterruptMode, func() {
		p.applyNextInterruptChange(caller, infos, pending, i+1)
	}); err != nil {
		caller.log.Error("mode change request failed", "lcore", lc, "error", err)
		p.applyNextInterruptChange(caller, infos, pending, i+1)
	}
}

func (p *Pool) applyMigrations(caller *Reactor, infos []sched.CoreInfo) {
	for _, ci := range infos {
		r := p.reactors[ci.Lcore]
		if r == nil {
			continue
		}
		for _, ti := range ci.ThreadInfos {
			if ti.Lcore == ci.Lcore {
				continue // no migration requested
			}
			target := p.reactors[ti.Lcore]
			if target == nil {
				continue
			}
			if p.isolated.IsSet(int(ci.Lcore)) || p.isolated.IsSet(int(ti.Lcore)) {
				caller.log.Error("migration refused: isolated core", "from", ci.Lcore, "to", ti.Lcore, "thread_id", ti.ThreadID)
				continue
			}
			t := r.findThread(ti.ThreadID)
			if t == nil || t.IsBound() {
				continue
			}
			r.recordTrace(TraceThreadMove)
			t.state.lcore.Store(ti.Lcore)
			t.state.resched.Store(true)
		}
	}

	p.schedState.coreInfos = infos
	p.schedState.unlock()
}

func findCoreInfo(infos []sched.CoreInfo, lcore uint32) sched.CoreInfo {
	for _, ci := range infos {
		if ci.Lcore == lcore {
			return ci
		}
	}
	return sched.CoreInfo{Lcore: lcore}
}

func (r *Reactor) findThread(id uint64) *Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.state.threadID == id {
			return t
		}
	}
	return nil
}
