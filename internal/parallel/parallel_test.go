package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForRange_CoversAllIndices(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}
	n := 1000
	hits := make([]int32, n)
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, cfg)
	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestForRange_SmallInputRunsInline(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 100}
	var calls int
	ForRange(10, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	}, cfg)
	assert.Equal(t, 1, calls)
}

func TestForRange_Disabled(t *testing.T) {
	cfg := Config{Enabled: false, NumWorkers: 4, MinChunkSize: 1}
	var calls int
	ForRange(5000, func(start, end int) { calls++ }, cfg)
	assert.Equal(t, 1, calls)
}

func TestFor_AppliesToEveryIndex(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 2, MinChunkSize: 4}
	n := 64
	var sum int64
	For(n, func(i int) {
		atomic.AddInt64(&sum, int64(i))
	}, cfg)
	assert.Equal(t, int64(n*(n-1)/2), sum)
}
