package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// setupTestRedis creates a test Redis instance using miniredis
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	cleanup := func() {
		client.Close()
		s.Close()
	}

	return client, cleanup
}

func testSignal(symbol string) models.Signal {
	return models.Signal{
		ID:          "7f2c4e9a-1b3d-4f5e-8a6c-0d9e8f7a6b5c",
		Symbol:      symbol,
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Prediction:  models.DirectionBullish,
		Probability: decimal.RequireFromString("0.82"),
		CreatedAt:   time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC),
	}
}

func testSummary() models.BacktestSummary {
	return models.BacktestSummary{
		TotalTrades:         42,
		ProfitableTrades:    25,
		WinRate:             decimal.RequireFromString("59.52"),
		AvgReturnPct:        decimal.RequireFromString("0.31"),
		CumulativeReturnPct: decimal.RequireFromString("13.7"),
	}
}

func TestNewRedisSignalCache(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	assert.NotNil(t, cache)
	assert.Equal(t, client, cache.redis)
	assert.Equal(t, 15*time.Minute, cache.signalTTL)
	assert.Equal(t, time.Hour, cache.summaryTTL)
	assert.NotNil(t, cache.stats)
	assert.Equal(t, "signal:latest:", cache.signalPrefix)
	assert.Equal(t, "backtest:summary:", cache.summaryPrefix)
}

func TestRedisSignalCache_GetLatestSignal_Success(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	// First, set a signal
	signal := testSignal("SPY")
	cache.SetLatestSignal(signal)

	// Now get it back
	retrieved, found := cache.GetLatestSignal("SPY")

	assert.True(t, found)
	require.NotNil(t, retrieved)
	assert.Equal(t, signal, *retrieved)

	// Check stats
	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRedisSignalCache_GetLatestSignal_Miss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	// Try to get non-existent data
	retrieved, found := cache.GetLatestSignal("QQQ")

	assert.False(t, found)
	assert.Nil(t, retrieved)

	// Check stats
	stats := cache.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Sets)
}

func TestRedisSignalCache_GetLatestSignal_InvalidJSON(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	// Manually set invalid JSON data
	client.Set(context.Background(), "signal:latest:SPY", "invalid json", 15*time.Minute)

	// Try to get it
	retrieved, found := cache.GetLatestSignal("SPY")

	assert.False(t, found)
	assert.Nil(t, retrieved)

	// Check stats - should be a miss due to JSON error
	stats := cache.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRedisSignalCache_SetLatestSignal(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	signal := testSignal("SPY")
	cache.SetLatestSignal(signal)

	// Verify data was stored correctly
	data, err := client.Get(context.Background(), "signal:latest:SPY").Result()
	require.NoError(t, err)

	var entry SignalCacheEntry
	err = json.Unmarshal([]byte(data), &entry)
	require.NoError(t, err)

	assert.Equal(t, signal, entry.Signal)
	assert.True(t, time.Since(entry.CachedAt) < time.Minute)

	// Expiry comes from the Redis TTL, not the payload
	ttl, err := client.TTL(context.Background(), "signal:latest:SPY").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= 15*time.Minute)

	// Check stats
	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRedisSignalCache_Summary_RoundTrip(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	summary := testSummary()
	cache.SetSummary("SPY", "3a1f8e0c-9d2b-4c7a-b6e5-4f3a2d1c0b9a", summary)

	retrieved, found := cache.GetSummary("SPY")

	assert.True(t, found)
	require.NotNil(t, retrieved)
	assert.Equal(t, "3a1f8e0c-9d2b-4c7a-b6e5-4f3a2d1c0b9a", retrieved.RunID)
	assert.Equal(t, summary, retrieved.Summary)

	// Summary keys get the longer TTL
	ttl, err := client.TTL(context.Background(), "backtest:summary:SPY").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 15*time.Minute && ttl <= time.Hour)

	// Check stats
	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRedisSignalCache_GetSummary_Miss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	retrieved, found := cache.GetSummary("SPY")

	assert.False(t, found)
	assert.Nil(t, retrieved)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRedisSignalCache_InvalidateSymbol(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	cache.SetLatestSignal(testSignal("SPY"))
	cache.SetLatestSignal(testSignal("QQQ"))
	cache.SetSummary("SPY", "run-1", testSummary())

	err := cache.InvalidateSymbol("SPY")
	assert.NoError(t, err)

	// Both SPY entries are gone
	_, found := cache.GetLatestSignal("SPY")
	assert.False(t, found)
	_, found = cache.GetSummary("SPY")
	assert.False(t, found)

	// Other symbols are untouched
	retrieved, found := cache.GetLatestSignal("QQQ")
	assert.True(t, found)
	assert.Equal(t, "QQQ", retrieved.Symbol)
}

func TestRedisSignalCache_GetStats(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	// Initial stats should be zero
	stats := cache.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, int64(0), stats.Sets)

	// Perform some operations
	cache.SetLatestSignal(testSignal("SPY"))
	cache.GetLatestSignal("SPY")  // Hit
	cache.GetLatestSignal("^VIX") // Miss
	cache.GetSummary("SPY")       // Miss

	// Check updated stats
	stats = cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRedisSignalCache_LogStats(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	// This test just ensures LogStats doesn't panic
	cache.LogStats()

	// Add some data and log again
	cache.SetLatestSignal(testSignal("SPY"))
	cache.GetLatestSignal("SPY")
	cache.LogStats()
}

func TestRedisSignalCache_Clear_Success(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisSignalCache(client, 15*time.Minute, time.Hour)

	// Clearing an empty cache is fine
	assert.NoError(t, cache.Clear())

	// Add some data
	cache.SetLatestSignal(testSignal("SPY"))
	cache.SetLatestSignal(testSignal("QQQ"))
	cache.SetSummary("SPY", "run-1", testSummary())

	// Clear the cache
	err := cache.Clear()
	assert.NoError(t, err)

	// Verify data is gone
	_, found1 := cache.GetLatestSignal("SPY")
	_, found2 := cache.GetLatestSignal("QQQ")
	_, found3 := cache.GetSummary("SPY")
	assert.False(t, found1)
	assert.False(t, found2)
	assert.False(t, found3)
}
