package lru_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/melodist/pkg/alg/lru"
)

const (
	// testMaxEntries is the default max entries for count-based tests.
	testMaxEntries = 100

	// smallMaxEntries limits the cache to 3 entries for eviction tests.
	smallMaxEntries = 3

	// testConcurrentGoroutines is the number of goroutines for concurrency tests.
	testConcurrentGoroutines = 50

	// testConcurrentOps is the number of operations per goroutine.
	testConcurrentOps = 100
)

func TestNew_RequiresCapacity(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { lru.New[int, int]() })
}

func TestGetPut(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](lru.WithMaxEntries[string, int](testMaxEntries))

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 1)
	c.Put("a", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestEviction_LeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := lru.New[int, int](lru.WithMaxEntries[int, int](smallMaxEntries))
	c.Put(1, 1)
	c.Put(2, 2)
	c.Put(3, 3)

	// Touch 1 so that 2 becomes the eviction victim.
	_, _ = c.Get(1)
	c.Put(4, 4)

	_, ok := c.Get(2)
	assert.False(t, ok)

	for _, k := range []int{1, 3, 4} {
		_, ok := c.Get(k)
		assert.True(t, ok, "key %d", k)
	}
}

func TestCloneFunc(t *testing.T) {
	t.Parallel()

	c := lru.New[int, []int](
		lru.WithMaxEntries[int, []int](testMaxEntries),
		lru.WithCloneFunc[int, []int](func(v []int) []int { return append([]int(nil), v...) }),
	)

	src := []int{1, 2}
	c.Put(1, src)
	src[0] = 9

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, got)
}

func TestClear(t *testing.T) {
	t.Parallel()

	c := lru.New[int, int](lru.WithMaxEntries[int, int](testMaxEntries))
	c.Put(1, 1)
	c.Clear()

	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := lru.New[int, int](lru.WithMaxEntries[int, int](testMaxEntries))

	var wg sync.WaitGroup

	for g := range testConcurrentGoroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range testConcurrentOps {
				c.Put(g*testConcurrentOps+i, i)
				c.Get(i)
			}
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, c.Len(), testMaxEntries)
}
