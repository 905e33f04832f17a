package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", time.Minute)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestTTLCache_Miss(t *testing.T) {
	c := NewTTLCache()
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLCache_SetRefreshes(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "old", 10*time.Millisecond)
	c.Set("k", "new", time.Minute)

	time.Sleep(30 * time.Millisecond)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestTTLCache_Delete(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", time.Minute)
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestPortsCacheKey(t *testing.T) {
	assert.Equal(t, "ports:local", PortsCacheKey("local"))
	assert.NotEqual(t, PortsCacheKey("a"), PortsCacheKey("b"))
}
