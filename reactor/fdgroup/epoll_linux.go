//go:build linux

package fdgroup

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxFDs bounds direct array indexing of registered descriptors.
const maxFDs = 65536

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback Callback
	events   Events
	active   bool
	nested   Group // set when fd belongs to a nested child, for draining
}

// epollGroup is an epoll-backed Group. Direct array indexing keyed by fd
// avoids a map on the hot dispatch path; an RWMutex protects the array
// against concurrent AddFD/RemoveFD/ModifyFD from other reactors (a
// fd-group may be nested under a reactor other than the one that built it,
// e.g. during an interrupt-mode transition).
type epollGroup struct {
	epfd     int32
	version  atomic.Uint64
	eventBuf [256]unix.EpollEvent
	fds      [maxFDs]fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool

	nestedMu sync.Mutex
	nested   map[int]Group // child epoll fd -> child Group, for Unnest lookups
}

func newEpollGroup() (*epollGroup, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	g := &epollGroup{epfd: int32(epfd)}
	g.nested = make(map[int]Group)
	return g, nil
}

func (g *epollGroup) Close() error {
	g.closed.Store(true)
	if g.epfd > 0 {
		return closeFD(int(g.epfd))
	}
	return nil
}

func (g *epollGroup) AddFD(fd int, events Events, cb Callback) error {
	if g.closed.Load() {
		return ErrClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}

	g.fdMu.Lock()
	if g.fds[fd].active {
		g.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	g.fds[fd] = fdInfo{callback: cb, events: events, active: true}
	g.version.Add(1)
	g.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(int(g.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		g.fdMu.Lock()
		g.fds[fd] = fdInfo{}
		g.fdMu.Unlock()
		return err
	}
	return nil
}

func (g *epollGroup) RemoveFD(fd int) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}

	g.fdMu.Lock()
	if !g.fds[fd].active {
		g.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	g.fds[fd] = fdInfo{}
	g.version.Add(1)
	g.fdMu.Unlock()

	return unix.EpollCtl(int(g.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

func (g *epollGroup) ModifyFD(fd int, events Events) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}

	g.fdMu.Lock()
	if !g.fds[fd].active {
		g.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	g.fds[fd].events = events
	g.version.Add(1)
	g.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(int(g.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

// Nest registers child's own epoll fd as a member of g, so that anything
// ready inside child wakes g's Wait. The dispatch callback for that member
// fd drains child with a zero-timeout Wait, which in turn invokes child's
// own per-fd callbacks.
func (g *epollGroup) Nest(child Group) error {
	cg, ok := child.(*epollGroup)
	if !ok {
		return ErrNotNested
	}

	g.nestedMu.Lock()
	if _, exists := g.nested[int(cg.epfd)]; exists {
		g.nestedMu.Unlock()
		return ErrAlreadyNested
	}
	g.nested[int(cg.epfd)] = child
	g.nestedMu.Unlock()

	return g.AddFD(int(cg.epfd), EventRead, func(Events) {
		_, _ = child.Wait(0)
	})
}

func (g *epollGroup) Unnest(child Group) error {
	cg, ok := child.(*epollGroup)
	if !ok {
		return ErrNotNested
	}

	g.nestedMu.Lock()
	if _, exists := g.nested[int(cg.epfd)]; !exists {
		g.nestedMu.Unlock()
		return ErrNotNested
	}
	delete(g.nested, int(cg.epfd))
	g.nestedMu.Unlock()

	return g.RemoveFD(int(cg.epfd))
}

// Wait blocks up to timeoutMs (negative blocks indefinitely) and dispatches
// callbacks for every fd that became ready, including draining any nested
// child groups transitively. Returns the number of top-level fds dispatched.
func (g *epollGroup) Wait(timeoutMs int) (int, error) {
	if g.closed.Load() {
		return 0, ErrClosed
	}

	v := g.version.Load()

	n, err := unix.EpollWait(int(g.epfd), g.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	if g.version.Load() != v {
		// fd table was mutated mid-syscall by a concurrent AddFD/RemoveFD;
		// the event buffer may reference a slot that no longer matches.
		return 0, nil
	}

	g.dispatchEvents(n)
	return n, nil
}

func (g *epollGroup) dispatchEvents(n int) {
	for i := 0; i < n; i++ {
		fd := int(g.eventBuf[i].Fd)
		if fd < 0 || fd >= maxFDs {
			continue
		}
		g.fdMu.RLock()
		info := g.fds[fd]
		g.fdMu.RUnlock()

		if info.active && info.callback != nil {
			info.callback(epollToEvents(g.eventBuf[i].Events))
		}
	}
}

func eventsToEpoll(events Events) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(epollEvents uint32) Events {
	var e Events
	if epollEvents&unix.EPOLLIN != 0 {
		e |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		e |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		e |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		e |= EventHangup
	}
	return e
}
