package sched

// RoundRobin is a trivial placement policy: it never requests migrations
// or mode changes, serving as the inert default and as a baseline for
// tests exercising the Policy interface without balancing behaviour.
type RoundRobin struct{}

func (RoundRobin) Name() string         { return "round-robin" }
func (RoundRobin) Init() error          { return nil }
func (RoundRobin) Deinit()              {}
func (RoundRobin) Balance(_ []CoreInfo) {}
