package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/retailcrawler/pkg/errors"
	"sjsage522/retailcrawler/services/proxy"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, 1, config.RedisStreamCount)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, time.Hour, config.CrawlInterval)
	assert.Equal(t, 10, config.DefaultMaxPages)
	assert.Equal(t, time.Second, config.DefaultRequestDelay)
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("REDIS_STREAM_COUNT", "4")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("CRAWL_INTERVAL_SECONDS", "30")
	t.Setenv("DEFAULT_MAX_PAGES", "3")
	t.Setenv("DEFAULT_REQUEST_DELAY_MS", "250")
	t.Setenv("FOLLOW_PRODUCT_LIMIT", "not-a-number")

	config = LoadConfig()
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 4, config.RedisStreamCount)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
	assert.Equal(t, 30*time.Second, config.CrawlInterval)
	assert.Equal(t, 3, config.DefaultMaxPages)
	assert.Equal(t, 250*time.Millisecond, config.DefaultRequestDelay)
	assert.Equal(t, 50, config.FollowProductLimit, "unparseable values fall back to the default")
}

func TestValidate(t *testing.T) {
	config := LoadConfig()
	config.DefaultMaxPages = 0

	err := config.Validate()
	require.Error(t, err)
	typ, _ := errors.TypeOf(err)
	assert.Equal(t, errors.ErrorTypeConfiguration, typ)
}

const retailerYAML = `
retailers:
  - id: tesco
    start_urls:
      - https://www.tesco.com/groceries/en-GB/shop/pets/all
    max_pages: 4
    request_delay_ms: 0
  - id: amazon_uk
    enabled: false
    start_urls: []
  - id: zooplus
    start_urls: ["https://www.zooplus.co.uk/shop/dogs/dry_dog_food"]
    headers:
      Accept-Language: en-GB
    proxy:
      strategy: round_robin
      rotate_per_request: true
      providers:
        - name: gateway
          type: rotating
          host: gw.proxy.example
          port: 7777
          username: user
          password: pass
          sticky_seconds: 60
`

func TestParseRetailerFile(t *testing.T) {
	f, err := ParseRetailerFile([]byte(retailerYAML))
	require.NoError(t, err)
	require.Len(t, f.Retailers, 3)

	enabled := f.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "tesco", enabled[0].ID)
	assert.Equal(t, "zooplus", enabled[1].ID)

	z, ok := f.Get("zooplus")
	require.True(t, ok)
	assert.Equal(t, "en-GB", z.Headers["Accept-Language"])
	assert.True(t, z.Proxy.Enabled())
	assert.Equal(t, proxy.StrategyRoundRobin, z.Proxy.Strategy)
	assert.True(t, z.Proxy.RotatePerRequest)
	assert.Equal(t, 60, z.Proxy.Providers[0].StickySeconds)

	config := LoadConfig()
	config.Retailers = f
	assert.NoError(t, config.Validate())

	assert.Equal(t, 4, config.MaxPagesFor("tesco"))
	assert.Equal(t, 10, config.MaxPagesFor("zooplus"), "missing max_pages uses the default")
	assert.Equal(t, 10, config.MaxPagesFor("unknown"))
	assert.Equal(t, time.Duration(0), config.RequestDelayFor("tesco"), "an explicit zero disables the delay")
	assert.Equal(t, time.Second, config.RequestDelayFor("zooplus"))
}

func TestParseRetailerFile_Errors(t *testing.T) {
	cases := map[string]string{
		"missing id":     "retailers:\n  - start_urls: [https://a.example/]\n",
		"duplicate id":   "retailers:\n  - id: a\n    start_urls: [https://a.example/]\n  - id: a\n    start_urls: [https://a.example/]\n",
		"no start urls":  "retailers:\n  - id: a\n",
		"bad start url":  "retailers:\n  - id: a\n    start_urls: [\"ftp://a.example/\"]\n",
		"negative delay": "retailers:\n  - id: a\n    start_urls: [https://a.example/]\n    request_delay_ms: -5\n",
		"bad proxy":      "retailers:\n  - id: a\n    start_urls: [https://a.example/]\n    proxy:\n      providers:\n        - type: carrier-pigeon\n",
		"bad yaml":       "retailers: [",
	}
	for name, doc := range cases {
		_, err := ParseRetailerFile([]byte(doc))
		assert.Error(t, err, name)
		typ, _ := errors.TypeOf(err)
		assert.Equal(t, errors.ErrorTypeConfiguration, typ, name)
	}
}

func TestLoadRetailerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retailers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(retailerYAML), 0o600))

	f, err := LoadRetailerFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Retailers, 3)

	_, err = LoadRetailerFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedRetailerFile(t *testing.T) {
	f, err := LoadRetailerFile(filepath.Join("..", "retailers.yaml"))
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	require.NotEmpty(t, f.Enabled())

	for _, r := range f.Retailers {
		_, err := proxy.FromConfig(r.Proxy)
		assert.NoError(t, err, r.ID)
	}

	amazon, ok := f.Get("amazon_uk")
	require.True(t, ok)
	assert.False(t, amazon.IsEnabled())
}
