package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Requires a running memcached; skipped otherwise
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("retailcrawler_test_key", []byte("test_value"), 1500*time.Millisecond)
	assert.NoError(t, err)

	value, err := mc.Get("retailcrawler_test_key")
	assert.NoError(t, err)
	assert.Equal(t, "test_value", string(value))

	assert.NoError(t, mc.Delete("retailcrawler_test_key"))
	assert.NoError(t, mc.Delete("retailcrawler_test_key"), "deleting a missing key is not an error")

	_, err = mc.Get("retailcrawler_test_key")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, c.Set("block", []byte("300"), 5*time.Minute))
	value, err := c.Get("block")
	assert.NoError(t, err)
	assert.Equal(t, "300", string(value))

	now = now.Add(5 * time.Minute)
	_, err = c.Get("block")
	assert.ErrorIs(t, err, ErrMiss, "entry expires at its deadline")

	assert.NoError(t, c.Set("forever", []byte("x"), 0))
	now = now.Add(24 * time.Hour)
	_, err = c.Get("forever")
	assert.NoError(t, err)

	assert.NoError(t, c.Delete("forever"))
	_, err = c.Get("forever")
	assert.ErrorIs(t, err, ErrMiss)
}
