package reactor

import "sync/atomic"

// RunState is the lifecycle state of a Reactor's main loop.
type RunState uint64

const (
	// StateAwake indicates the reactor has been constructed but not started.
	StateAwake RunState = 0
	// StateTerminated indicates the reactor has finished its shutdown drain.
	StateTerminated RunState = 1
	// StateSleeping indicates the reactor is blocked in fgrp.wait (interrupt mode).
	StateSleeping RunState = 2
	// StateRunning indicates the reactor is actively polling or dispatching.
	StateRunning RunState = 3
	// StateTerminating indicates shutdown has been requested but the drain
	// has not yet completed.
	StateTerminating RunState = 4
)

func (s RunState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine with cache-line padding to avoid
// false sharing between a reactor's own goroutine and for_each_reactor/
// interrupt-mode callers observing it from a peer core.
type fastState struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

func (s *fastState) Load() RunState {
	return RunState(s.v.Load())
}

func (s *fastState) Store(state RunState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts an atomic CAS from one state to another.
func (s *fastState) TryTransition(from, to RunState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts a transition from any of validFrom to to.
func (s *fastState) TransitionAny(validFrom []RunState, to RunState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

func (s *fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

func (s *fastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}
