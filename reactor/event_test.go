package reactor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMempoolAllocateExhausts(t *testing.T) {
	p := NewEventMempool(2)
	require.Equal(t, 2, p.Available())

	e1 := p.Allocate(AnyLcore, nil, nil, nil)
	require.NotNil(t, e1)
	e2 := p.Allocate(AnyLcore, nil, nil, nil)
	require.NotNil(t, e2)
	assert.Equal(t, 0, p.Available())

	// pool exhausted: further allocation returns nil, never grows.
	assert.Nil(t, p.Allocate(AnyLcore, nil, nil, nil))
}

func TestEventMempoolFreeBatchReusesSlots(t *testing.T) {
	p := NewEventMempool(1)
	e := p.Allocate(3, func(any, any) {}, "a", "b")
	require.NotNil(t, e)
	assert.Nil(t, p.Allocate(3, nil, nil, nil))

	p.FreeBatch([]*Event{e})
	assert.Equal(t, 1, p.Available())

	reused := p.Allocate(7, nil, nil, nil)
	require.NotNil(t, reused)
	assert.Equal(t, uint32(7), reused.TargetLcore())
}

func TestEventMempoolFreeBatchClearsFields(t *testing.T) {
	p := NewEventMempool(1)
	called := false
	e := p.Allocate(0, func(any, any) { called = true }, 1, 2)
	p.FreeBatch([]*Event{e})

	reused := p.Allocate(0, nil, nil, nil)
	require.NotNil(t, reused)
	assert.Nil(t, reused.fn)
	assert.Nil(t, reused.arg1)
	assert.Nil(t, reused.arg2)
	assert.False(t, called)
}

func TestEventMempoolConcurrentAllocateNeverExceedsCapacity(t *testing.T) {
	const capacity = 64
	p := NewEventMempool(capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var got []*Event

	for i := 0; i < capacity*4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e := p.Allocate(AnyLcore, nil, nil, nil); e != nil {
				mu.Lock()
				got = append(got, e)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, got, capacity)
	assert.Equal(t, 0, p.Available())

	seen := make(map[*Event]bool, len(got))
	for _, e := range got {
		assert.False(t, seen[e], "same slot handed out twice")
		seen[e] = true
	}
}
