package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// Cache stores complete search results by query fingerprint
type Cache interface {
	Get(ctx context.Context, key string) (*models.SearchResult, bool, error)
	Set(ctx context.Context, key string, result *models.SearchResult, ttl time.Duration) error
}

// RedisCache keeps results in Redis so they survive restarts and are shared between replicas
type RedisCache struct {
	client *utils.RedisClient
}

func NewRedisCache(client *utils.RedisClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.SearchResult, bool, error) {
	var result models.SearchResult
	if err := c.client.GetJSON(ctx, cacheKey(key), &result); err != nil {
		if errors.Is(err, utils.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result *models.SearchResult, ttl time.Duration) error {
	return c.client.SetJSON(ctx, cacheKey(key), result, ttl)
}

func cacheKey(fingerprint string) string {
	return "search:" + fingerprint
}

type memoryEntry struct {
	result    models.SearchResult
	expiresAt time.Time
}

// MemoryCache is an in-process cache used when Redis is not configured
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

func (c *MemoryCache) Get(_ context.Context, key string) (*models.SearchResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	result := entry.result
	result.Records = append([]models.ListingRecord(nil), entry.result.Records...)
	return &result, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, result *models.SearchResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{result: *result}
	entry.result.Records = append([]models.ListingRecord(nil), result.Records...)
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
