package reactor

// Padding sizes that keep the event ring's consumer and producer cursors on
// separate cache lines.
const (
	sizeOfCacheLine    = 128
	sizeOfAtomicUint64 = 8
)
