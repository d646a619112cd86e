package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndGet(t *testing.T) {
	r := NewModuleRegistry()

	ts := r.NextTimestamp("/main.ts")
	r.Store("/main.ts", "console.log(1)", ts)

	record, ok := r.Get("/main.ts")
	require.True(t, ok)
	assert.Equal(t, "/main.ts", record.URL)
	assert.Equal(t, "console.log(1)", record.Code)
	assert.Equal(t, ts, record.Timestamp)
	assert.Equal(t, 1, r.Count())
}

func TestInvalidateIsIdempotent(t *testing.T) {
	r := NewModuleRegistry()
	r.Store("/a.ts", "a", r.NextTimestamp("/a.ts"))

	r.Invalidate("/a.ts")
	_, ok := r.Get("/a.ts")
	assert.False(t, ok)

	// Removing an already-absent entry must not panic or error.
	r.Invalidate("/a.ts")
	r.Invalidate("/never-stored.ts")
	assert.Equal(t, 0, r.Count())
}

func TestNextTimestampMonotonicPerURL(t *testing.T) {
	r := NewModuleRegistry()

	var prev int64
	for i := 0; i < 1000; i++ {
		ts := r.NextTimestamp("/main.ts")
		assert.Greater(t, ts, prev)
		prev = ts
	}
}

func TestNextTimestampSurvivesInvalidation(t *testing.T) {
	r := NewModuleRegistry()

	first := r.NextTimestamp("/main.ts")
	r.Store("/main.ts", "v1", first)
	r.Invalidate("/main.ts")

	second := r.NextTimestamp("/main.ts")
	assert.Greater(t, second, first)
}

func TestConcurrentStoreLastWriteWins(t *testing.T) {
	r := NewModuleRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := r.NextTimestamp("/main.ts")
			r.Store("/main.ts", "same output", ts)
		}()
	}
	wg.Wait()

	record, ok := r.Get("/main.ts")
	require.True(t, ok)
	assert.Equal(t, "same output", record.Code)
	assert.Equal(t, 1, r.Count())
}
