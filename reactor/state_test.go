package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastStateInitialValue(t *testing.T) {
	s := newFastState()
	assert.Equal(t, StateAwake, s.Load())
	assert.False(t, s.IsRunning())
	assert.False(t, s.IsTerminal())
}

func TestFastStateTryTransition(t *testing.T) {
	s := newFastState()
	assert.True(t, s.TryTransition(StateAwake, StateRunning))
	assert.Equal(t, StateRunning, s.Load())

	// wrong "from" fails and leaves state untouched.
	assert.False(t, s.TryTransition(StateAwake, StateTerminated))
	assert.Equal(t, StateRunning, s.Load())
}

func TestFastStateTransitionAny(t *testing.T) {
	s := newFastState()
	s.Store(StateSleeping)

	ok := s.TransitionAny([]RunState{StateRunning, StateSleeping}, StateTerminating)
	assert.True(t, ok)
	assert.Equal(t, StateTerminating, s.Load())

	ok = s.TransitionAny([]RunState{StateRunning, StateSleeping}, StateTerminated)
	assert.False(t, ok)
}

func TestFastStateIsRunningCoversPollingAndSleeping(t *testing.T) {
	s := newFastState()
	s.Store(StateRunning)
	assert.True(t, s.IsRunning())
	s.Store(StateSleeping)
	assert.True(t, s.IsRunning())
	s.Store(StateTerminating)
	assert.False(t, s.IsRunning())
}

func TestFastStateIsTerminal(t *testing.T) {
	s := newFastState()
	s.Store(StateTerminated)
	assert.True(t, s.IsTerminal())
}

func TestRunStateString(t *testing.T) {
	cases := map[RunState]string{
		StateAwake:       "Awake",
		StateRunning:     "Running",
		StateSleeping:    "Sleeping",
		StateTerminating: "Terminating",
		StateTerminated:  "Terminated",
		RunState(99):     "Unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
