package reactor

import "github.com/makesoftwaresafe/spdk-sub001/reactor/fdgroup"

// ThreadRuntime is the external collaborator that executes a lightweight
// thread's pollers and messages. The reactor core only calls into it; it
// never re-implements cooperative suspension, message delivery or
// promise/timer semantics (spec.md §1 Non-goals, §9 "treat as a black
// box").
type ThreadRuntime interface {
	// Poll runs one quantum of thread t. Returns >0 if work was done, 0 if
	// idle. lastTSC is the reactor's tsc_last, for the runtime to compute
	// its own internal timers if it has any.
	Poll(t *Thread, maxMsgs int, lastTSC uint64) int

	// IsExited reports whether the thread has finished and may be
	// destroyed once also idle.
	IsExited(t *Thread) bool

	// IsIdle reports whether the thread has no pending work of its own
	// (messages, timers) independent of the reactor's event ring.
	IsIdle(t *Thread) bool

	// InterruptFDGroup returns the thread's own waitable fd-group, nested
	// into its owning reactor's fd-group while that reactor is in
	// interrupt mode. May return nil if the thread has no fds of its own.
	InterruptFDGroup(t *Thread) fdgroup.Group

	// SetInterruptMode notifies the runtime that its owning reactor has
	// entered or left interrupt mode, so it can adjust how it surfaces
	// readiness (e.g. switch a timer from busy-poll to a waitable fd).
	SetInterruptMode(t *Thread, enabled bool)

	// SendMsg delivers fn to thread t's own mailbox, FIFO per sender.
	SendMsg(t *Thread, fn func())
}
