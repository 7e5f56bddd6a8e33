//go:build linux

package reactor

import (
	"sync/atomic"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/fdgroup"
)

// fakeRuntime is a minimal ThreadRuntime stand-in for tests: it does no
// real work, just tracks how it was called.
type fakeRuntime struct {
	exited  atomic.Bool
	idle    atomic.Bool
	polls   atomic.Int64
	intMode atomic.Bool
	fgrp    fdgroup.Group
}

func (f *fakeRuntime) Poll(*Thread, int, uint64) int {
	f.polls.Add(1)
	return 0
}
func (f *fakeRuntime) IsExited(*Thread) bool                  { return f.exited.Load() }
func (f *fakeRuntime) IsIdle(*Thread) bool                    { return f.idle.Load() }
func (f *fakeRuntime) InterruptFDGroup(*Thread) fdgroup.Group { return f.fgrp }
func (f *fakeRuntime) SetInterruptMode(_ *Thread, enabled bool) { f.intMode.Store(enabled) }
func (f *fakeRuntime) SendMsg(*Thread, func())                  {}
