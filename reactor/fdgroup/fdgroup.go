//go:build linux

// Package fdgroup implements the fd-group abstraction consumed by the
// reactor: a waitable set of file descriptors with per-fd callbacks,
// supporting composition by nesting. A reactor's own events_fd/resched_fd
// are registered directly; a lightweight thread's own interrupt fd-group
// (owned by the Thread Runtime, an external collaborator) is composed in
// via Nest when the reactor enters interrupt mode.
//
// Implementation is epoll-backed (Linux). Nesting works the same way the
// kernel supports it natively: a child Group's epoll fd is itself
// pollable, so Nest adds it as a member fd of the parent with a callback
// that drains the child non-blockingly whenever the kernel reports it
// ready.
package fdgroup

import "errors"

// Events is the set of I/O readiness conditions a registered fd can report.
type Events uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead Events = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// Callback is invoked with the events that fired for a registered fd.
type Callback func(Events)

// Standard errors.
var (
	ErrFDOutOfRange        = errors.New("fdgroup: fd out of range")
	ErrFDAlreadyRegistered = errors.New("fdgroup: fd already registered")
	ErrFDNotRegistered     = errors.New("fdgroup: fd not registered")
	ErrClosed              = errors.New("fdgroup: group closed")
	ErrAlreadyNested       = errors.New("fdgroup: child already nested")
	ErrNotNested           = errors.New("fdgroup: child not nested")
)

// Group is a waitable set of file descriptors with per-fd callbacks,
// composable by nesting one Group inside another.
//
// Readers must not poll a nested child Group directly while it remains
// nested: the parent is the sole entity that waits on it, per spec.
type Group interface {
	// AddFD registers fd for the given events, invoking cb on readiness.
	AddFD(fd int, events Events, cb Callback) error
	// RemoveFD unregisters fd.
	RemoveFD(fd int) error
	// ModifyFD updates the monitored events for an already-registered fd.
	ModifyFD(fd int, events Events) error
	// Wait blocks (up to timeoutMs milliseconds, or forever if negative)
	// until at least one registered fd is ready, dispatching callbacks for
	// all that fired. Returns the number of fds dispatched.
	Wait(timeoutMs int) (int, error)
	// Nest composes child into this group: the child's own waitable fd is
	// registered with this group, and becomes ready whenever anything
	// inside child is ready. The child is drained (non-blocking) from
	// inside this group's Wait.
	Nest(child Group) error
	// Unnest reverses Nest.
	Unnest(child Group) error
	// Close releases the underlying OS resources.
	Close() error
}

// New creates a new, empty Group.
func New() (Group, error) {
	return newEpollGroup()
}
