// Package cache holds the read-model cache for showtime pages and seat
// availability snapshots. Entries expire by TTL and are deleted whenever the
// seat map of their showtime changes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Cache interface {
	// Get decodes the entry into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Keys builds cache keys per key class.
type Keys struct {
	Prefix string
}

func (k Keys) Showtime(id string) string {
	return fmt.Sprintf("%s:showtime:%s", k.Prefix, id)
}

func (k Keys) SeatMap(id string) string {
	return fmt.Sprintf("%s:seatmap:%s", k.Prefix, id)
}

// ForShowtime lists every key derived from the showtime's seat map.
func (k Keys) ForShowtime(id string) []string {
	return []string{k.Showtime(id), k.SeatMap(id)}
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache used when redis is unreachable.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.value, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{value: raw, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}
