package search

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// redisForTest connects to REDIS_TEST_URL, skipping when no server is reachable
func redisForTest(t *testing.T) *utils.RedisClient {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := utils.NewRedisClientFrom(redis.NewClient(opts), "autohawk-test")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCacheRoundTrip(t *testing.T) {
	client := redisForTest(t)
	cache := NewRedisCache(client)
	ctx := context.Background()
	key := "fingerprint-" + utils.GenerateRequestID()
	t.Cleanup(func() { _ = client.Delete(ctx, cacheKey(key)) })

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	miles := 12000
	stored := &models.SearchResult{
		SearchID: "s-1",
		Records: []models.ListingRecord{{
			ID: "a", Make: "Toyota", Model: "Camry", Year: 2018, Price: 20000,
			Mileage: &miles, Accidents: models.AccidentNone,
		}},
		PagesVisited: 1,
	}
	require.NoError(t, cache.Set(ctx, key, stored, time.Minute))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored.Records, got.Records)
	assert.Equal(t, 1, got.PagesVisited)
}

func TestMemoryCacheIsolatesCallers(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	original := &models.SearchResult{Records: []models.ListingRecord{{ID: "a"}}}
	require.NoError(t, c.Set(ctx, "k", original, 0))

	original.Records[0].ID = "mutated"
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got.Records[0].ID)

	got.Records[0].ID = "changed"
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "a", again.Records[0].ID)
}
