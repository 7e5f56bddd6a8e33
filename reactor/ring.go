package reactor

import "sync/atomic"

// DefaultRingCapacity is the spec'd default Event Ring capacity.
const DefaultRingCapacity = 1 << 16

// eventRing is a bounded, exact-size, power-of-two-capacity multi-producer/
// single-consumer queue of *Event. Unlike the teacher's MicrotaskRing, it
// never grows into an overflow slice: spec.md requires the ring to be
// exact-size, with the mempool sized so allocation exhausts before the ring
// ever fills (§3, §7). The slot-claim/sequence-stamp shape follows the
// bounded MPMC ring design used throughout hayabusa-cloud-lfq, specialised
// here to a single consumer (only the owning reactor calls Dequeue).
type eventRing struct {
	mask  uint64
	slots []ringSlot

	_    [sizeOfCacheLine]byte
	head atomic.Uint64 // consumer cursor, owning reactor only
	_    [sizeOfCacheLine - sizeOfAtomicUint64]byte
	tail atomic.Uint64 // producer cursor, CAS-claimed by any goroutine
}

type ringSlot struct {
	seq atomic.Uint64
	val *Event
}

// newEventRing constructs a ring of the given capacity, which must be a
// power of two.
func newEventRing(capacity int) *eventRing {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("reactor: ring capacity must be a power of two")
	}
	r := &eventRing{
		mask:  uint64(capacity - 1),
		slots: make([]ringSlot, capacity),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// Enqueue attempts to claim a slot and publish e. Returns false if the ring
// is exactly full — per spec.md this must never happen in a correctly
// configured system (the mempool exhausts first); callers treat false as a
// fatal configuration error, not a retry path.
func (r *eventRing) Enqueue(e *Event) bool {
	for {
		tail := r.tail.Load()
		slot := &r.slots[tail&r.mask]
		seq := slot.seq.Load()

		switch {
		case seq == tail:
			if r.tail.CompareAndSwap(tail, tail+1) {
				slot.val = e
				slot.seq.Store(tail + 1)
				return true
			}
		case seq < tail:
			return false // ring full
		default:
			// another producer has claimed this slot but not yet published; retry
		}
	}
}

// Dequeue removes the next event in FIFO order. Must only be called by the
// ring's owning reactor.
func (r *eventRing) Dequeue() (*Event, bool) {
	head := r.head.Load()
	slot := &r.slots[head&r.mask]
	seq := slot.seq.Load()

	if seq != head+1 {
		return nil, false
	}

	e := slot.val
	slot.val = nil
	slot.seq.Store(head + uint64(len(r.slots)))
	r.head.Store(head + 1)
	return e, true
}

// Len returns an eventually-consistent approximation of the queue depth,
// readable from any core per spec.md invariant 3 (never used for
// correctness, diagnostics only).
func (r *eventRing) Len() int {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Capacity returns the ring's fixed slot count.
func (r *eventRing) Capacity() int {
	return len(r.slots)
}
