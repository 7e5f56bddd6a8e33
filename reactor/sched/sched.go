// Package sched defines the scheduler-policy surface consumed by the
// reactor's periodic scheduling pass: the stable CoreInfo/ThreadInfo data
// shape a policy reads and mutates, and a named-plug-in registry (spec.md
// §4.5, §6).
package sched

import (
	"fmt"
	"sync"
)

// Stats is a busy/idle tick pair.
type Stats struct {
	Busy uint64
	Idle uint64
}

// ThreadInfo is the stable per-thread row a policy reads and mutates.
// Lcore is read as the thread's current owner; a policy writes a different
// value to request a migration.
type ThreadInfo struct {
	Lcore    uint32
	ThreadID uint64
	Current  Stats
	Total    Stats
}

// CoreInfo is the stable per-core row a policy reads and mutates.
// A policy may only write ThreadInfos[*].Lcore and InterruptMode
// (spec.md §6); the driver enforces the isolated-core guard.
type CoreInfo struct {
	Lcore          uint32
	CurrentBusyTSC uint64
	CurrentIdleTSC uint64
	TotalBusyTSC   uint64
	TotalIdleTSC   uint64
	InterruptMode  bool
	Isolated       bool
	ThreadInfos    []ThreadInfo
}

// Policy is the interface a pluggable placement policy implements.
// Balance must only mutate ThreadInfos[].Lcore and InterruptMode.
type Policy interface {
	Name() string
	Init() error
	Deinit()
	Balance(cores []CoreInfo)
}

var (
	mu       sync.Mutex
	registry = map[string]Policy{}
	active   Policy
)

// Register adds a policy to the registry by name, for later Set.
func Register(p Policy) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Name()] = p
}

// Set deinitialises the currently active policy (if any) and initialises
// the named one, reverting to the previous policy on init failure.
func Set(name string) error {
	mu.Lock()
	defer mu.Unlock()

	next, ok := registry[name]
	if !ok {
		return fmt.Errorf("sched: no policy registered as %q", name)
	}
	prev := active
	if prev != nil {
		prev.Deinit()
	}
	if err := next.Init(); err != nil {
		if prev != nil {
			_ = prev.Init()
		}
		return fmt.Errorf("sched: init %q: %w", name, err)
	}
	active = next
	return nil
}

// Active returns the currently active policy, or nil if none is set.
func Active() Policy {
	mu.Lock()
	defer mu.Unlock()
	return active
}
