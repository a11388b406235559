package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/retailcrawler/logger"
)

// MemcacheService implements CacheService on memcached so that block windows
// are shared between worker instances.
type MemcacheService struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheService creates a memcache-backed cache for one or more servers
func NewMemcacheService(servers ...string) *MemcacheService {
	client := memcache.New(servers...)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{client: client, log: logger.ForCache()}
}

// Ping checks that every server is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value, mapping a memcache miss to ErrMiss
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Memcache get failed")
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value. Expirations are rounded up to whole seconds.
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	seconds := int32(expiration / time.Second)
	if expiration%time.Second != 0 {
		seconds++
	}
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: seconds,
	})
}

// Delete removes a value; deleting a missing key is not an error
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
