//go:build linux

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makesoftwaresafe/spdk-sub001/reactor/fdgroup"
)

func TestSetInterruptModeRequiresSchedulingReactor(t *testing.T) {
	p, err := NewPool(Config{Lcores: []uint32{0, 1}, RingCapacity: 64},
		func(uint32) (fdgroup.Group, error) { return fdgroup.New() })
	require.NoError(t, err)
	runPool(t, p)

	// target (lcore 0) has an fd-group and is already polling, so PERM is
	// the only thing standing between this non-scheduling caller and a
	// fast-path success: checked after INVAL/NOTSUP, before the fast path.
	err = p.SetInterruptMode(p.reactors[1], 0, true, nil)
	var imErr *InterruptModeError
	require.ErrorAs(t, err, &imErr)
	assert.Equal(t, ErrCodePerm, imErr.Code)
}

func TestSetInterruptModeNotSupportedWithoutFdGroup(t *testing.T) {
	p := newTestPool(t, 0)
	runPool(t, p)

	err := p.SetInterruptMode(p.reactors[0], 0, true, nil)
	var imErr *InterruptModeError
	require.ErrorAs(t, err, &imErr)
	assert.Equal(t, ErrCodeNotSup, imErr.Code)
}

func TestSetInterruptModeUnknownLcoreErrors(t *testing.T) {
	p := newTestPool(t, 0)
	runPool(t, p)

	err := p.SetInterruptMode(p.reactors[0], 99, true, nil)
	var imErr *InterruptModeError
	require.ErrorAs(t, err, &imErr)
	assert.Equal(t, ErrCodeInval, imErr.Code)
}

func TestSetInterruptModeNoOpWhenAlreadyInTargetMode(t *testing.T) {
	p, err := NewPool(Config{Lcores: []uint32{0}, RingCapacity: 64},
		func(uint32) (fdgroup.Group, error) { return fdgroup.New() })
	require.NoError(t, err)
	runPool(t, p)

	called := make(chan struct{}, 1)
	err = p.SetInterruptMode(p.reactors[0], 0, false, func() { called <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("no-op transition never invoked its callback")
	}
}

func TestSetInterruptModeTransitionsToInterruptAndBack(t *testing.T) {
	p, err := NewPool(Config{Lcores: []uint32{0}, RingCapacity: 64},
		func(uint32) (fdgroup.Group, error) { return fdgroup.New() })
	require.NoError(t, err)
	runPool(t, p)

	toInterrupt := make(chan struct{}, 1)
	err = p.SetInterruptMode(p.reactors[0], 0, true, func() { toInterrupt <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-toInterrupt:
	case <-time.After(2 * time.Second):
		t.Fatal("polling->interrupt transition never completed")
	}
	require.Eventually(t, func() bool { return p.reactors[0].InInterrupt() }, time.Second, 10*time.Millisecond)

	toPolling := make(chan struct{}, 1)
	err = p.SetInterruptMode(p.reactors[0], 0, false, func() { toPolling <- struct{}{} })
	require.NoError(t, err)

	select {
	case <-toPolling:
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt->polling transition never completed")
	}
	require.Eventually(t, func() bool { return !p.reactors[0].InInterrupt() }, time.Second, 10*time.Millisecond)
}
