package config

import (
	"os"
	"strconv"
	"time"

	"sjsage522/retailcrawler/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration. An empty address uses the in-process cache.
	MemcacheAddr string

	// Crawler configuration
	CrawlInterval       time.Duration
	DefaultMaxPages     int
	DefaultRequestDelay time.Duration
	FetchTimeout        time.Duration
	RateLimitBlockTime  time.Duration
	FollowProductLimit  int

	RetailersFile string
	Retailers     *RetailerFile

	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "retail_records"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 10000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		CrawlInterval:        time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", 3600)) * time.Second,
		DefaultMaxPages:      getEnvInt("DEFAULT_MAX_PAGES", 10),
		DefaultRequestDelay:  time.Duration(getEnvInt("DEFAULT_REQUEST_DELAY_MS", 1000)) * time.Millisecond,
		FetchTimeout:         time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		RateLimitBlockTime:   time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		FollowProductLimit:   getEnvInt("FOLLOW_PRODUCT_LIMIT", 50),
		RetailersFile:        getEnv("RETAILERS_FILE", "retailers.yaml"),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
		Environment:          getEnv("CRAWLER_ENVIRONMENT", "development"),
	}
}

// Validate reports the first configuration error
func (c *Config) Validate() error {
	switch {
	case c.RedisAddr == "":
		return errors.NewConfiguration("REDIS_ADDR is required", nil)
	case c.RedisStream == "":
		return errors.NewConfiguration("REDIS_STREAM is required", nil)
	case c.RedisStreamCount <= 0:
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	case c.CrawlInterval <= 0:
		return errors.NewConfiguration("CRAWL_INTERVAL_SECONDS must be positive", nil)
	case c.DefaultMaxPages <= 0:
		return errors.NewConfiguration("DEFAULT_MAX_PAGES must be positive", nil)
	case c.DefaultRequestDelay < 0:
		return errors.NewConfiguration("DEFAULT_REQUEST_DELAY_MS must not be negative", nil)
	case c.FetchTimeout <= 0:
		return errors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	case c.FollowProductLimit < 0:
		return errors.NewConfiguration("FOLLOW_PRODUCT_LIMIT must not be negative", nil)
	}
	if c.Retailers != nil {
		return c.Retailers.Validate()
	}
	return nil
}

// IsProduction reports whether the crawler runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MaxPagesFor returns the retailer's max_pages, or the global default
func (c *Config) MaxPagesFor(id string) int {
	if r, ok := c.retailer(id); ok && r.MaxPages > 0 {
		return r.MaxPages
	}
	return c.DefaultMaxPages
}

// RequestDelayFor returns the retailer's request_delay_ms, or the global
// default. An explicit zero disables the delay.
func (c *Config) RequestDelayFor(id string) time.Duration {
	if r, ok := c.retailer(id); ok && r.RequestDelayMS != nil {
		return time.Duration(*r.RequestDelayMS) * time.Millisecond
	}
	return c.DefaultRequestDelay
}

func (c *Config) retailer(id string) (RetailerSettings, bool) {
	if c.Retailers == nil {
		return RetailerSettings{}, false
	}
	return c.Retailers.Get(id)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return n
}
