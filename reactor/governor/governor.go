// Package governor provides a pluggable, named CPU-frequency controller
// registry (spec.md §4.7). The core never calls a governor itself; a
// scheduling policy (reactor/sched.Policy.Balance) may call governor.Active
// during Phase 2 to adjust per-core frequency before migrations are applied.
package governor

import (
	"fmt"
	"sync"
)

// Governor is a named CPU-frequency controller plug-in.
type Governor interface {
	Name() string
	Init() error
	Deinit()
	// SetCoreFreq requests a frequency change for lcore; freqMHz is a
	// policy-defined target, interpreted by the concrete implementation.
	SetCoreFreq(lcore uint32, freqMHz uint32) error
	// GetCoreCurFreq returns the last known frequency for lcore.
	GetCoreCurFreq(lcore uint32) (uint32, error)
}

var (
	mu       sync.Mutex
	registry = map[string]Governor{}
	active   Governor
)

// Register adds g to the registry. Panics on a duplicate name, mirroring
// the original's "governor already registered" fatal-at-init behaviour.
func Register(g Governor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[g.Name()]; exists {
		panic(fmt.Sprintf("governor: %q already registered", g.Name()))
	}
	registry[g.Name()] = g
}

// Set deinitialises the currently active governor (if any) and initialises
// the one registered under name. name == "" clears the active governor. On
// init failure, the previous governor is restored and left active.
func Set(name string) error {
	mu.Lock()
	defer mu.Unlock()

	if name == "" {
		if active != nil {
			active.Deinit()
		}
		active = nil
		return nil
	}

	next, ok := registry[name]
	if !ok {
		return fmt.Errorf("governor: no governor registered as %q", name)
	}
	if active == next {
		return nil
	}

	prev := active
	if err := next.Init(); err != nil {
		return fmt.Errorf("governor: init %q: %w", name, err)
	}
	if prev != nil {
		prev.Deinit()
	}
	active = next
	return nil
}

// Active returns the currently active governor, or nil.
func Active() Governor {
	mu.Lock()
	defer mu.Unlock()
	return active
}
