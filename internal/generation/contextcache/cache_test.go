package contextcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetSet(t *testing.T) {
	c := New(4, time.Minute)

	key := Key("very long context", "gpt-4o")
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, "uploaded-ref-1")
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "uploaded-ref-1", got)
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	assert.NotEqual(t, Key("same content", "model-a"), Key("same content", "model-b"))
	assert.Equal(t, Key("same content", "model-a"), Key("same content", "model-a"))
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Now()
	c := New(4, time.Minute, WithClock(func() time.Time { return now }))

	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheCapacityEviction(t *testing.T) {
	now := time.Now()
	c := New(2, time.Minute, WithClock(func() time.Time { return now }))

	c.Set("a", "1")
	now = now.Add(time.Second)
	c.Set("b", "2")
	now = now.Add(time.Second)
	c.Set("c", "3")

	assert.Equal(t, 2, c.Len())
	// 最早过期的条目被淘汰
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}
