//go:build linux

package reactor

// Call implements event_call (spec.md §4.1): resolves the target reactor,
// allocates and enqueues an Event, and decides whether to write to the
// target's events_fd. caller is the reactor the calling goroutine is
// running on, or nil if the caller is not itself a reactor (the Go
// substitute for the implicit thread-local "current reactor" pointer:
// callers that are reactors pass self explicitly).
func (p *Pool) Call(targetLcore uint32, caller *Reactor, fn EventFn, arg1, arg2 any) error {
	target := p.reactors[targetLcore]
	if target == nil {
		return &InterruptModeError{Code: ErrCodeInval, Lcore: targetLcore, Message: "no such lcore"}
	}

	e := p.mempool.Allocate(targetLcore, fn, arg1, arg2)
	if e == nil {
		return ErrEventPoolExhausted
	}
	if !target.ring.Enqueue(e) {
		// Ring-full is a programmer error per spec.md §7: the mempool must
		// exhaust first. Treat as fatal rather than silently dropping.
		panic(ErrRingFull)
	}

	if target.eventsFd >= 0 && (caller == nil || caller.notifyCpusetContains(targetLcore)) {
		if err := writeWake(target.eventsFd); err != nil {
			target.logWakeError("events_fd", err)
		}
	}
	return nil
}

func (p *Pool) isStopping() bool {
	p.stoppingMu.Lock()
	defer p.stoppingMu.Unlock()
	return p.stopping
}

// ForEachReactor implements for_each_reactor (spec.md §4.6): runs fn on
// every valid reactor in lcore order, each invocation posted as an Event
// from the previous step's reactor to the next one (so it executes on the
// reactor whose data it touches), then runs cpl on the originating reactor.
// If an Event cannot be allocated, the failure is logged and cpl is invoked
// directly, skipping any reactors not yet visited.
//
// self is the reactor currently making the call (for_each_reactor is only
// ever invoked from reactor context — the scheduling reactor driving a
// scheduling pass, or a reactor-local interrupt-mode transition).
//
// Once Shutdown has raised the stopping_reactors latch, further calls
// short-circuit to invoke cpl directly, preventing leaked in-flight
// traversals during teardown.
func (p *Pool) ForEachReactor(self *Reactor, fn func(r *Reactor), cpl func()) error {
	if p.isStopping() {
		cpl()
		return ErrStoppingReactors
	}

	origin := self
	var step func(cur *Reactor, idx int)
	step = func(cur *Reactor, idx int) {
		if idx >= len(p.order) {
			if err := p.Call(origin.lcore, cur, func(any, any) { cpl() }, nil, nil); err != nil {
				p.log.Warn("for_each_reactor completion dispatch failed, running completion directly", "lcore", origin.lcore, "error", err)
				cpl()
			}
			return
		}
		lc := p.order[idx]
		if err := p.Call(lc, cur, func(any, any) {
			target := p.reactors[lc]
			fn(target)
			step(target, idx+1)
		}, nil, nil); err != nil {
			p.log.Warn("for_each_reactor step dispatch failed, running completion directly", "lcore", lc, "error", err)
			cpl()
		}
	}
	step(self, 0)
	return nil
}

// beginStopping raises the stopping_reactors latch; called by Shutdown so
// no further traversal is accepted once teardown starts.
func (p *Pool) beginStopping() {
	p.stoppingMu.Lock()
	p.stopping = true
	p.stoppingMu.Unlock()
}
