package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"PortfolioChat/internal/session"
)

// CachedResponse represents a cached provider response
type CachedResponse struct {
	Response  string
	Provider  string
	Timestamp time.Time
}

// GenerateCacheKey generates a cache key from messages
func GenerateCacheKey(messages []session.Message) string {
	h := sha256.New()
	for _, msg := range messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Cache holds provider responses keyed by conversation. Entries older
// than the TTL are treated as misses and dropped.
type Cache struct {
	entries sync.Map
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a cache. A non-positive ttl disables caching.
func New(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{ttl: ttl, logger: logger, now: time.Now}
}

// Get checks if a response is cached
func (c *Cache) Get(key string) (CachedResponse, bool) {
	if c == nil || c.ttl <= 0 {
		return CachedResponse{}, false
	}
	val, ok := c.entries.Load(key)
	if !ok {
		return CachedResponse{}, false
	}
	cached := val.(CachedResponse)
	if c.now().Sub(cached.Timestamp) > c.ttl {
		c.entries.Delete(key)
		return CachedResponse{}, false
	}
	c.logger.Info("cache hit", "key", key[:16])
	return cached, true
}

// Put stores a response in cache
func (c *Cache) Put(key, provider, response string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.entries.Store(key, CachedResponse{
		Response:  response,
		Provider:  provider,
		Timestamp: c.now(),
	})
	c.logger.Debug("cached response", "key", key[:16])
}
