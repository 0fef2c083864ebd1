package obs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceGeneratorCarriesSource(t *testing.T) {
	g := NewTraceGenerator(7, 100)
	first := g.Next()
	assert.Equal(t, uint16(7), TraceSource(first))
	assert.Equal(t, uint64(101), first&traceCounterMask)
	assert.Equal(t, first+1, g.Next())

	other := NewTraceGenerator(8, 100)
	assert.NotEqual(t, first, other.Next())
}

func TestTraceGeneratorSkipsZero(t *testing.T) {
	g := NewTraceGenerator(0, traceCounterMask)
	assert.Equal(t, uint64(1), g.Next())

	var nilGen *TraceGenerator
	assert.Zero(t, nilGen.Next())
}

func TestTraceGeneratorConcurrentUnique(t *testing.T) {
	g := NewTraceGenerator(1, 0)
	const workers, per = 8, 1000

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*per)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]uint64, 0, per)
			for j := 0; j < per; j++ {
				ids = append(ids, g.Next())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*per)
}
