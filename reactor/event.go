package reactor

import "sync"

// AnyLcore is the sentinel lcore value meaning "not yet scheduled" or
// "currently in flight between reactors".
const AnyLcore = ^uint32(0)

// EventFn is the callable carried by an Event. Handlers run outside any LW
// context: no thread-local pointer is set while fn executes.
type EventFn func(arg1, arg2 any)

// Event is a one-shot callable addressed to a target lcore, delivered via
// that reactor's event ring. Immutable once allocated; ownership passes to
// the ring on enqueue and then to the dispatching reactor.
type Event struct {
	targetLcore uint32
	fn          EventFn
	arg1        any
	arg2        any

	next *Event // mempool freelist link; unused once allocated
}

// TargetLcore is the lcore this event is addressed to.
func (e *Event) TargetLcore() uint32 { return e.targetLcore }

// EventMempool is a fixed-capacity typed pool of Event slots. Allocation
// never grows the pool: event_allocate returns nil once exhausted, and
// callers must size the pool so it exhausts before any ring could fill
// (spec.md §3, §7 — ring-full is a programmer error, not a runtime path).
//
// get_bulk/put_bulk must be safe for concurrent use by many producer
// goroutines and by every reactor returning drained batches; a mutex over a
// freelist slice gives that safety directly (mirroring the overflow
// freelist in the teacher's MicrotaskRing, which protects its slice the
// same way).
type EventMempool struct {
	mu       sync.Mutex
	storage  []Event
	freeHead *Event
}

// NewEventMempool constructs a pool with room for capacity in-flight events.
func NewEventMempool(capacity int) *EventMempool {
	p := &EventMempool{storage: make([]Event, capacity)}
	for i := range p.storage {
		p.storage[i].next = p.freeHead
		p.freeHead = &p.storage[i]
	}
	return p
}

// Allocate pulls a zeroed Event from the pool, filling the given fields.
// Returns nil if the pool is exhausted.
func (p *EventMempool) Allocate(targetLcore uint32, fn EventFn, arg1, arg2 any) *Event {
	p.mu.Lock()
	e := p.freeHead
	if e == nil {
		p.mu.Unlock()
		return nil
	}
	p.freeHead = e.next
	p.mu.Unlock()

	e.next = nil
	e.targetLcore = targetLcore
	e.fn = fn
	e.arg1 = arg1
	e.arg2 = arg2
	return e
}

// FreeBatch returns a batch of dispatched events to the pool in bulk.
func (p *EventMempool) FreeBatch(events []*Event) {
	if len(events) == 0 {
		return
	}
	p.mu.Lock()
	for _, e := range events {
		e.fn = nil
		e.arg1 = nil
		e.arg2 = nil
		e.next = p.freeHead
		p.freeHead = e
	}
	p.mu.Unlock()
}

// Available reports the number of free slots, for diagnostics/tests only.
func (p *EventMempool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for e := p.freeHead; e != nil; e = e.next {
		n++
	}
	return n
}
