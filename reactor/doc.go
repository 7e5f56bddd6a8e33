//go:build linux

// Package reactor implements a per-core event-driven scheduler: a fixed
// pool of pinned reactors, each running lightweight threads cooperatively
// and exchanging cross-core work through lock-free event rings, with a
// periodic scheduling pass that gathers load statistics, rebalances
// lightweight threads across cores, and drives per-core polling/interrupt
// mode transitions.
package reactor
