package orchestrator

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleflight_DedupsConcurrentCallsForSameKey(t *testing.T) {
	g := newSingleflightGroup()
	var calls atomic.Int32
	var wg sync.WaitGroup

	results := make([]any, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := g.do("session-1", func() (any, error) {
				calls.Add(1)
				return "vm-1", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "vm-1", r)
	}
}

func TestSingleflight_DistinctKeysRunIndependently(t *testing.T) {
	g := newSingleflightGroup()
	var calls atomic.Int32

	_, _ = g.do("a", func() (any, error) { calls.Add(1); return nil, nil })
	_, _ = g.do("b", func() (any, error) { calls.Add(1); return nil, nil })

	assert.Equal(t, int32(2), calls.Load())
}

func TestSingleflight_SubsequentCallAfterCompletionRunsAgain(t *testing.T) {
	g := newSingleflightGroup()
	var calls atomic.Int32

	_, _ = g.do("a", func() (any, error) { calls.Add(1); return nil, nil })
	_, _ = g.do("a", func() (any, error) { calls.Add(1); return nil, nil })

	assert.Equal(t, int32(2), calls.Load())
}
