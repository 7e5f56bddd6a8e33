//go:build linux

package reactor

// SetInterruptMode implements reactor_set_interrupt_mode (spec.md §4.3),
// checking in the same order as original_source/lib/event/reactor.c's
// _reactor_set_interrupt_mode: INVAL, then NOTSUP, then PERM, then the
// already-in-target-mode fast path, and only then BUSY — so a caller
// racing a transition on some other core still gets an immediate success
// if the target is already in the requested mode, rather than a
// gratuitous BUSY.
//
// caller identifies the calling reactor (the Go substitute for the
// implicit "current core" check in the original); only the scheduling
// reactor may call it, enforced as PERM.
func (p *Pool) SetInterruptMode(caller *Reactor, lcore uint32, newMode bool, cb func()) error {
	target := p.reactors[lcore]
	if target == nil {
		return &InterruptModeError{Code: ErrCodeInval, Lcore: lcore, Message: "no such lcore"}
	}
	if target.fgrp == nil {
		return &InterruptModeError{Code: ErrCodeNotSup, Lcore: lcore, Message: "reactor has no fd-group"}
	}
	if caller == nil || caller.lcore != p.schedulingLcore.Load() {
		return &InterruptModeError{Code: ErrCodePerm, Lcore: lcore, Message: "not called on the scheduling reactor"}
	}

	if target.inInterrupt.Load() == newMode {
		if cb != nil {
			cb()
		}
		return nil
	}

	if !target.setInterruptInProgress.CompareAndSwap(false, true) {
		return &InterruptModeError{Code: ErrCodeBusy, Lcore: lcore, Message: "transition already in flight"}
	}

	target.newInInterrupt.Store(newMode)

	if newMode {
		p.beginPollingToInterrupt(target, cb)
	} else {
		p.beginInterruptToPolling(target, cb)
	}
	return nil
}

// beginPollingToInterrupt drives the polling->interrupt protocol
// (spec.md §4.3): Step A enables every peer's notify bit for target before
// the target sleeps; Step B dispatches to the target to run Step C.
func (p *Pool) beginPollingToInterrupt(target *Reactor, cb func()) {
	schedulingReactor := p.reactors[p.schedulingLcore.Load()]

	_ = p.ForEachReactor(schedulingReactor, func(r *Reactor) {
		r.setNotifyCpuset(target.lcore, true)
	}, func() {
		_ = p.Call(target.lcore, schedulingReactor, func(any, any) {
			p.completePollingToInterrupt(target, schedulingReactor, cb)
		}, nil, nil)
	})
}

// completePollingToInterrupt is Step C, run on the target reactor: nests
// every owned LW's interrupt fd-group, flips in_interrupt, and writes a
// wake byte to both events_fd and resched_fd to guarantee a first
// iteration drains any race-window enqueues (spec.md §4.3).
func (p *Pool) completePollingToInterrupt(target *Reactor, schedulingReactor *Reactor, cb func()) {
	target.mu.Lock()
	threads := append([]*Thread(nil), target.threads...)
	target.mu.Unlock()

	for _, t := range threads {
		if fg := t.state.runtime.InterruptFDGroup(t); fg != nil {
			_ = target.fgrp.Nest(fg)
		}
		t.state.runtime.SetInterruptMode(t, true)
	}

	target.inInterrupt.Store(true)

	if err := writeWake(target.eventsFd); err != nil {
		target.logWakeError("events_fd", err)
	}
	if err := writeWake(target.reschedFd); err != nil {
		target.logWakeError("resched_fd", err)
	}

	target.setInterruptInProgress.Store(false)

	if p.onInterruptModeChange != nil {
		p.onInterruptModeChange(target.lcore, true)
	}

	_ = p.Call(schedulingReactor.lcore, target, func(any, any) {
		if cb != nil {
			cb()
		}
	}, nil, nil)
}

// beginInterruptToPolling drives the interrupt->polling protocol
// (spec.md §4.3): Step A on the target unnests and flips the mode before
// Step B disables every peer's notify bit, so notifications are disabled
// only after the target resumes polling.
func (p *Pool) beginInterruptToPolling(target *Reactor, cb func()) {
	schedulingReactor := p.reactors[p.schedulingLcore.Load()]

	_ = p.Call(target.lcore, schedulingReactor, func(any, any) {
		target.mu.Lock()
		threads := append([]*Thread(nil), target.threads...)
		target.mu.Unlock()

		for _, t := range threads {
			if fg := t.state.runtime.InterruptFDGroup(t); fg != nil {
				_ = target.fgrp.Unnest(fg)
			}
			t.state.runtime.SetInterruptMode(t, false)
		}

		target.inInterrupt.Store(false)
		target.tscLast.Store(tscNow())

		_ = p.ForEachReactor(target, func(r *Reactor) {
			r.setNotifyCpuset(target.lcore, false)
		}, func() {
			target.setInterruptInProgress.Store(false)
			if p.onInterruptModeChange != nil {
				p.onInterruptModeChange(target.lcore, false)
			}
			_ = p.Call(schedulingReactor.lcore, target, func(any, any) {
				if cb != nil {
					cb()
				}
			}, nil, nil)
		})
	}, nil, nil)
}
