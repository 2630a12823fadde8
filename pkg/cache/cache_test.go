package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardy-sh/clove-lang/pkg/types"
)

func stubQuery() *types.Query {
	return &types.Query{Stages: []*types.Stage{{Kind: types.StageRootStart}}}
}

func TestCacheDefaultsCapacityWhenNonPositive(t *testing.T) {
	c := New(0)
	assert.Equal(t, 256, c.Capacity())
	c = New(-5)
	assert.Equal(t, 256, c.Capacity())
}

func TestCacheSetAndGet(t *testing.T) {
	c := New(4)
	q := stubQuery()
	c.Set("a", q)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, q, got)
}

func TestCacheGetMissReturnsFalse(t *testing.T) {
	c := New(4)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set("a", stubQuery())
	c.Set("b", stubQuery())
	c.Set("c", stubQuery()) // evicts "a", the least recently used

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheGetPromotesToMostRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set("a", stubQuery())
	c.Set("b", stubQuery())
	c.Get("a") // touch "a" so "b" becomes the eviction candidate
	c.Set("c", stubQuery())

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestCacheSetReplacesExistingKeyWithoutGrowing(t *testing.T) {
	c := New(4)
	c.Set("a", stubQuery())
	q2 := stubQuery()
	c.Set("a", q2)
	assert.Equal(t, 1, c.Len())
	got, _ := c.Get("a")
	assert.Same(t, q2, got)
}

func TestCacheGetOrCompileCallsCompileOnlyOnce(t *testing.T) {
	c := New(4)
	calls := 0
	compile := func() (*types.Query, error) {
		calls++
		return stubQuery(), nil
	}
	_, err := c.GetOrCompile("k", compile)
	require.NoError(t, err)
	_, err = c.GetOrCompile("k", compile)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCacheGetOrCompileDoesNotCacheErrors(t *testing.T) {
	c := New(4)
	calls := 0
	compile := func() (*types.Query, error) {
		calls++
		return nil, types.NewError(types.ErrParse, types.Position{}, "bad query")
	}
	_, err := c.GetOrCompile("k", compile)
	require.Error(t, err)
	_, err = c.GetOrCompile("k", compile)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheStatsTracksHitsAndMisses(t *testing.T) {
	c := New(4)
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", stubQuery())
	_, ok = c.Get("a")
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestCacheGetOrCompileHitReportsWhetherCached(t *testing.T) {
	c := New(4)
	compile := func() (*types.Query, error) { return stubQuery(), nil }

	_, hit, err := c.GetOrCompileHit("k", compile)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = c.GetOrCompileHit("k", compile)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCacheInvalidateRemovesEntry(t *testing.T) {
	c := New(4)
	c.Set("a", stubQuery())
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheClearRemovesAllEntries(t *testing.T) {
	c := New(4)
	c.Set("a", stubQuery())
	c.Set("b", stubQuery())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentAccessIsSafe(t *testing.T) {
	c := New(16)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%16))
			c.Set(key, stubQuery())
			c.Get(key)
		}(i)
	}
	wg.Wait()
}
