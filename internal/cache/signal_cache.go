package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// SignalCacheEntry represents a cached signal with metadata
type SignalCacheEntry struct {
	Signal   models.Signal `json:"signal"`
	CachedAt time.Time     `json:"cached_at"`
}

// SummaryCacheEntry represents a cached backtest summary with the run it
// came from
type SummaryCacheEntry struct {
	RunID    string                 `json:"run_id"`
	Summary  models.BacktestSummary `json:"summary"`
	CachedAt time.Time              `json:"cached_at"`
}

// SignalCacheStats tracks cache performance metrics
type SignalCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisSignalCache keeps the latest signal and most recent backtest summary
// per symbol in Redis so the read API does not hit PostgreSQL on every poll
type RedisSignalCache struct {
	redis         *redis.Client
	signalTTL     time.Duration
	summaryTTL    time.Duration
	stats         *SignalCacheStats
	signalPrefix  string
	summaryPrefix string
}

// NewRedisSignalCache creates a new Redis-based signal cache
func NewRedisSignalCache(redisClient *redis.Client, signalTTL, summaryTTL time.Duration) *RedisSignalCache {
	return &RedisSignalCache{
		redis:         redisClient,
		signalTTL:     signalTTL,
		summaryTTL:    summaryTTL,
		stats:         &SignalCacheStats{},
		signalPrefix:  "signal:latest:",
		summaryPrefix: "backtest:summary:",
	}
}

// GetLatestSignal retrieves the cached latest signal for a symbol
func (c *RedisSignalCache) GetLatestSignal(symbol string) (*models.Signal, bool) {
	ctx := context.Background()
	cacheKey := c.signalPrefix + symbol

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		log.Printf("Redis error getting latest signal for %s: %v", symbol, err)
		c.miss()
		return nil, false
	}

	var entry SignalCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		log.Printf("Error deserializing cached signal for %s: %v", symbol, err)
		c.miss()
		return nil, false
	}

	c.hit()
	return &entry.Signal, true
}

// SetLatestSignal stores the latest signal for its symbol
func (c *RedisSignalCache) SetLatestSignal(signal models.Signal) {
	ctx := context.Background()
	cacheKey := c.signalPrefix + signal.Symbol

	entry := SignalCacheEntry{
		Signal:   signal,
		CachedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error serializing signal for %s: %v", signal.Symbol, err)
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.signalTTL).Err(); err != nil {
		log.Printf("Redis error setting latest signal for %s: %v", signal.Symbol, err)
		return
	}

	c.set()
}

// GetSummary retrieves the cached backtest summary for a symbol
func (c *RedisSignalCache) GetSummary(symbol string) (*SummaryCacheEntry, bool) {
	ctx := context.Background()
	cacheKey := c.summaryPrefix + symbol

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		log.Printf("Redis error getting backtest summary for %s: %v", symbol, err)
		c.miss()
		return nil, false
	}

	var entry SummaryCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		log.Printf("Error deserializing cached summary for %s: %v", symbol, err)
		c.miss()
		return nil, false
	}

	c.hit()
	return &entry, true
}

// SetSummary stores the most recent backtest summary for a symbol
func (c *RedisSignalCache) SetSummary(symbol, runID string, summary models.BacktestSummary) {
	ctx := context.Background()
	cacheKey := c.summaryPrefix + symbol

	entry := SummaryCacheEntry{
		RunID:    runID,
		Summary:  summary,
		CachedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error serializing summary for %s: %v", symbol, err)
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.summaryTTL).Err(); err != nil {
		log.Printf("Redis error setting backtest summary for %s: %v", symbol, err)
		return
	}

	c.set()
}

// InvalidateSymbol drops every cached entry for a symbol. Called after a
// pipeline run refreshes the stored data underneath the cache.
func (c *RedisSignalCache) InvalidateSymbol(symbol string) error {
	ctx := context.Background()
	if err := c.redis.Del(ctx, c.signalPrefix+symbol, c.summaryPrefix+symbol).Err(); err != nil {
		return fmt.Errorf("error invalidating cache for %s: %w", symbol, err)
	}
	return nil
}

// GetStats returns current cache statistics
func (c *RedisSignalCache) GetStats() SignalCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return SignalCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs current cache performance statistics
func (c *RedisSignalCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	log.Printf("Redis Signal Cache Stats - Hits: %d, Misses: %d, Sets: %d, Hit Rate: %.2f%%",
		stats.Hits, stats.Misses, stats.Sets, hitRate)
}

// Clear removes all cached signals and summaries (useful for testing or
// cache invalidation)
func (c *RedisSignalCache) Clear() error {
	ctx := context.Background()

	for _, prefix := range []string{c.signalPrefix, c.summaryPrefix} {
		var keys []string
		iter := c.redis.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("error scanning cache keys: %w", err)
		}

		if len(keys) == 0 {
			continue
		}
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("error clearing cache: %w", err)
		}
	}

	return nil
}

func (c *RedisSignalCache) hit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *RedisSignalCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

func (c *RedisSignalCache) set() {
	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}
