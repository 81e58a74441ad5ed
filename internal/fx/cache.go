// Package fx provides a read-through cache for UF (Unidad de Fomento)
// values keyed by date. Health-plan contract caps are denominated in UF and
// must be converted to pesos at the bill's date.
package fx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mfuentes/cuentaclara/internal/common"
	"github.com/mfuentes/cuentaclara/internal/service"
)

// Source supplies the UF value for a given date. Implementations typically
// wrap an external quote service; the cache owns retries and TTL.
type Source interface {
	Value(ctx context.Context, date time.Time) (float64, error)
}

type cacheEntry struct {
	expiry time.Time
	value  float64
}

// Cache is a thread-safe read-through UF value cache with per-entry TTL.
type Cache struct {
	entries map[string]cacheEntry
	source  Source
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// NewCache creates a cache over the given source. A zero TTL defaults to
// 24 hours; UF values are fixed per calendar day.
func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	cache := &Cache{
		entries: make(map[string]cacheEntry),
		source:  source,
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// Value returns the UF value for the date, fetching through the source on a
// cache miss. Source failures are retried briefly before surfacing.
func (c *Cache) Value(ctx context.Context, date time.Time) (float64, error) {
	key := date.Format("2006-01-02")

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiry) {
		return entry.value, nil
	}

	var value float64
	err := common.WithRetry(ctx, func() error {
		var fetchErr error
		value, fetchErr = c.source.Value(ctx, date)
		return fetchErr
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch UF value for %s: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiry: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return value, nil
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	close(c.stopCh)
}

// cleanup periodically removes expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// StaticSource is a Source backed by a fixed table of per-date UF values.
// Useful for tests and for offline audits with a pre-fetched quote file.
type StaticSource map[string]float64

// Value implements Source.
func (s StaticSource) Value(_ context.Context, date time.Time) (float64, error) {
	key := date.Format("2006-01-02")
	if value, ok := s[key]; ok {
		return value, nil
	}
	return 0, fmt.Errorf("%w: no UF value for %s", common.ErrQuoteUnavailable, key)
}
