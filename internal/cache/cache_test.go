package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := New[string, int](8)
	t.Cleanup(func() { Unregister(c) })

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// Overwrite keeps a single entry.
	c.Set("a", 2)
	v, ok = c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](3)
	t.Cleanup(func() { Unregister(c) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	assert.True(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))

	// Inserting a fourth entry evicts the oldest (a).
	c.Set("d", 4)
	assert.False(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
	assert.True(t, c.Contains("d"))

	// Touch b so c becomes the LRU victim for the next insert.
	_, ok := c.Get("b")
	require.True(t, ok)
	c.Set("e", 5)
	assert.False(t, c.Contains("c"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("d"))
	assert.True(t, c.Contains("e"))
	assert.Equal(t, 3, c.Len())
}

func TestCache_SetRefreshesRecency(t *testing.T) {
	c := New[string, int](2)
	t.Cleanup(func() { Unregister(c) })

	c.Set("a", 1)
	c.Set("b", 2)
	// Re-setting a makes b the LRU victim.
	c.Set("a", 10)
	c.Set("c", 3)
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
}

func TestCache_ContainsDoesNotRefresh(t *testing.T) {
	c := New[string, int](2)
	t.Cleanup(func() { Unregister(c) })

	c.Set("a", 1)
	c.Set("b", 2)
	// Contains must not protect a from eviction.
	require.True(t, c.Contains("a"))
	c.Set("c", 3)
	assert.False(t, c.Contains("a"))
}

func TestCache_DefaultCapacity(t *testing.T) {
	c := New[int, int](0)
	t.Cleanup(func() { Unregister(c) })

	for i := 0; i < DefaultCapacity+10; i++ {
		c.Set(i, i)
	}
	assert.Equal(t, DefaultCapacity, c.Len())
	// The ten oldest entries were evicted.
	assert.False(t, c.Contains(0))
	assert.False(t, c.Contains(9))
	assert.True(t, c.Contains(10))
}

func TestClearAll_EmptiesEveryRegisteredCache(t *testing.T) {
	a := New[string, int](4)
	b := New[int, string](4)
	t.Cleanup(func() {
		Unregister(a)
		Unregister(b)
	})

	a.Set("x", 1)
	a.Set("y", 2)
	b.Set(1, "one")
	require.Equal(t, 2, a.Len())
	require.Equal(t, 1, b.Len())

	ClearAll()

	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, b.Len())
	assert.False(t, a.Contains("x"))
	assert.False(t, b.Contains(1))
}

func TestUnregister_ExcludesFromClearAll(t *testing.T) {
	a := New[string, int](4)
	t.Cleanup(func() { Unregister(a) })

	a.Set("x", 1)
	Unregister(a)
	ClearAll()

	// Still populated: ClearAll no longer reaches it.
	assert.True(t, a.Contains("x"))
}
