package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownCacheEntry records one upstream source that is temporarily
// excluded from collection for a symbol.
type CooldownCacheEntry struct {
	// Source is the upstream feed identifier (e.g. "marketfeed", "classifier").
	Source string `json:"source"`
	// Symbol is the instrument the cooldown applies to.
	Symbol string `json:"symbol"`
	// Reason describes why the source was put on cooldown.
	Reason string `json:"reason"`
	// ExpiresAt points to the time when the cooldown lifts. If nil, the
	// cooldown stays until removed explicitly.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// CreatedAt is the timestamp when the entry was created.
	CreatedAt time.Time `json:"created_at"`
}

// CooldownCacheStats holds statistics about the cooldown cache.
type CooldownCacheStats struct {
	TotalEntries   int64     `json:"total_entries"`
	ExpiredEntries int64     `json:"expired_entries"`
	Hits           int64     `json:"hits"`
	Misses         int64     `json:"misses"`
	Adds           int64     `json:"adds"`
	LastCleanup    time.Time `json:"last_cleanup"`
}

// SourceCooldownCache is the contract the collector uses to park failing
// sources instead of hammering them on every tick. Entries are transient:
// they live only as long as their TTL and are never persisted.
type SourceCooldownCache interface {
	// IsCoolingDown reports whether a source/symbol pair is on cooldown
	// and, if so, why.
	IsCoolingDown(source, symbol string) (bool, string)
	// Add puts a source/symbol pair on cooldown with a reason and TTL.
	Add(source, symbol, reason string, ttl time.Duration)
	// Remove lifts the cooldown for a source/symbol pair.
	Remove(source, symbol string)
	// Clear removes all cooldown entries.
	Clear()
	// GetStats returns the current cache statistics.
	GetStats() CooldownCacheStats
	// LogStats logs the current cache statistics.
	LogStats()
	// CleanupExpired removes entries whose expiration has passed and
	// returns how many were removed.
	CleanupExpired() int
	// GetActiveCooldowns returns all entries that are still in effect.
	GetActiveCooldowns() ([]CooldownCacheEntry, error)
	// Close cleans up any resources associated with the cache.
	Close() error
}

// RedisCooldownCache implements SourceCooldownCache on Redis so cooldowns
// survive process restarts and are shared between replicas.
type RedisCooldownCache struct {
	client redis.Cmdable
	ctx    context.Context
	stats  CooldownCacheStats
	mu     sync.RWMutex
	prefix string
}

// NewRedisCooldownCache creates a new Redis-based cooldown cache.
func NewRedisCooldownCache(client redis.Cmdable) *RedisCooldownCache {
	return &RedisCooldownCache{
		client: client,
		ctx:    context.Background(),
		prefix: "cooldown:",
		stats:  CooldownCacheStats{},
	}
}

func cooldownKey(source, symbol string) string {
	return source + ":" + symbol
}

// IsCoolingDown checks Redis for an active cooldown on the pair. Expired
// entries found during the lookup are deleted on the spot.
func (rcc *RedisCooldownCache) IsCoolingDown(source, symbol string) (bool, string) {
	rcc.mu.Lock()
	defer rcc.mu.Unlock()

	key := rcc.prefix + cooldownKey(source, symbol)
	val, err := rcc.client.Get(rcc.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			rcc.stats.Misses++
			return false, ""
		}
		// Log error but don't fail the check
		log.Printf("Redis cooldown check error for %s/%s: %v", source, symbol, err)
		rcc.stats.Misses++
		return false, ""
	}

	var entry CooldownCacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		log.Printf("Failed to unmarshal cooldown entry for %s/%s: %v", source, symbol, err)
		rcc.stats.Misses++
		return false, ""
	}

	// Check if entry has expired
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		rcc.client.Del(rcc.ctx, key)
		rcc.stats.ExpiredEntries++
		rcc.stats.Misses++
		return false, ""
	}

	rcc.stats.Hits++
	return true, entry.Reason
}

// Add puts a source/symbol pair on cooldown. A zero TTL means the entry
// stays until removed explicitly.
func (rcc *RedisCooldownCache) Add(source, symbol, reason string, ttl time.Duration) {
	rcc.mu.Lock()
	defer rcc.mu.Unlock()

	entry := CooldownCacheEntry{
		Source:    source,
		Symbol:    symbol,
		Reason:    reason,
		CreatedAt: time.Now(),
	}

	if ttl > 0 {
		expiresAt := time.Now().Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Failed to marshal cooldown entry for %s/%s: %v", source, symbol, err)
		return
	}

	key := rcc.prefix + cooldownKey(source, symbol)
	if err := rcc.client.Set(rcc.ctx, key, data, ttl).Err(); err != nil {
		log.Printf("Failed to set cooldown entry for %s/%s: %v", source, symbol, err)
		return
	}

	rcc.stats.Adds++
	rcc.stats.TotalEntries++
	log.Printf("Source %s cooling down for %s: %s (TTL: %v)", source, symbol, reason, ttl)
}

// Remove lifts the cooldown for a source/symbol pair.
func (rcc *RedisCooldownCache) Remove(source, symbol string) {
	rcc.mu.Lock()
	defer rcc.mu.Unlock()

	key := rcc.prefix + cooldownKey(source, symbol)
	result := rcc.client.Del(rcc.ctx, key)
	if result.Err() != nil {
		log.Printf("Failed to remove cooldown entry for %s/%s: %v", source, symbol, result.Err())
		return
	}

	if result.Val() > 0 {
		rcc.stats.TotalEntries--
		log.Printf("Lifted cooldown on %s for %s", source, symbol)
	}
}

// Clear removes all cooldown entries from Redis.
func (rcc *RedisCooldownCache) Clear() {
	rcc.mu.Lock()
	defer rcc.mu.Unlock()

	keys, err := rcc.scanKeys()
	if err != nil {
		log.Printf("Failed to scan cooldown keys: %v", err)
		return
	}

	if len(keys) > 0 {
		result := rcc.client.Del(rcc.ctx, keys...)
		if result.Err() != nil {
			log.Printf("Failed to clear cooldowns: %v", result.Err())
			return
		}
		rcc.stats.TotalEntries = 0
		log.Printf("Cleared %d cooldown entries", result.Val())
	}
}

// GetStats returns current cache statistics with the entry count refreshed
// from Redis.
func (rcc *RedisCooldownCache) GetStats() CooldownCacheStats {
	rcc.mu.Lock()
	defer rcc.mu.Unlock()

	if keys, err := rcc.scanKeys(); err == nil {
		rcc.stats.TotalEntries = int64(len(keys))
	}

	return rcc.stats
}

// LogStats logs current cache statistics to the standard logger.
func (rcc *RedisCooldownCache) LogStats() {
	stats := rcc.GetStats()
	log.Printf("Cooldown Cache Stats - Total: %d, Hits: %d, Misses: %d, Adds: %d, Expired: %d",
		stats.TotalEntries, stats.Hits, stats.Misses, stats.Adds, stats.ExpiredEntries)
}

// CleanupExpired removes entries whose expiration has passed. Redis drops
// most of them via key TTLs; this sweep catches entries written with a TTL
// of zero plus an explicit ExpiresAt.
func (rcc *RedisCooldownCache) CleanupExpired() int {
	rcc.mu.Lock()
	defer rcc.mu.Unlock()

	keys, err := rcc.scanKeys()
	if err != nil {
		log.Printf("Failed to scan cooldown keys for cleanup: %v", err)
		return 0
	}

	expiredCount := 0
	for _, key := range keys {
		val, err := rcc.client.Get(rcc.ctx, key).Result()
		if err != nil {
			continue
		}

		var entry CooldownCacheEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			continue
		}

		if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
			rcc.client.Del(rcc.ctx, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		rcc.stats.ExpiredEntries += int64(expiredCount)
		rcc.stats.TotalEntries -= int64(expiredCount)
		rcc.stats.LastCleanup = time.Now()
		log.Printf("Cleaned up %d expired cooldown entries", expiredCount)
	}

	return expiredCount
}

// GetActiveCooldowns returns all entries that are still in effect.
func (rcc *RedisCooldownCache) GetActiveCooldowns() ([]CooldownCacheEntry, error) {
	rcc.mu.RLock()
	defer rcc.mu.RUnlock()

	keys, err := rcc.scanKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to scan cooldown keys: %w", err)
	}

	var entries []CooldownCacheEntry
	for _, key := range keys {
		val, err := rcc.client.Get(rcc.ctx, key).Result()
		if err != nil {
			continue // Key might have expired between scan and get
		}

		var entry CooldownCacheEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			continue // Skip malformed entries
		}

		if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Close is a no-op; the Redis client is managed externally.
func (rcc *RedisCooldownCache) Close() error {
	return nil
}

func (rcc *RedisCooldownCache) scanKeys() ([]string, error) {
	var keys []string
	iter := rcc.client.Scan(rcc.ctx, 0, rcc.prefix+"*", 0).Iterator()
	for iter.Next(rcc.ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// InMemoryCooldownCache is a fallback SourceCooldownCache for deployments
// without Redis. Cooldowns are lost on restart, which is acceptable for a
// single-replica collector.
type InMemoryCooldownCache struct {
	cache map[string]*CooldownCacheEntry
	mu    sync.RWMutex
	stats CooldownCacheStats
}

// NewInMemoryCooldownCache creates a new in-memory cooldown cache.
func NewInMemoryCooldownCache() *InMemoryCooldownCache {
	return &InMemoryCooldownCache{
		cache: make(map[string]*CooldownCacheEntry),
		stats: CooldownCacheStats{},
	}
}

// IsCoolingDown checks the in-memory map for an active cooldown.
func (imc *InMemoryCooldownCache) IsCoolingDown(source, symbol string) (bool, string) {
	key := cooldownKey(source, symbol)

	imc.mu.Lock()
	defer imc.mu.Unlock()

	entry, exists := imc.cache[key]
	if !exists {
		imc.stats.Misses++
		return false, ""
	}

	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		delete(imc.cache, key)
		imc.stats.ExpiredEntries++
		imc.stats.TotalEntries--
		imc.stats.Misses++
		return false, ""
	}

	imc.stats.Hits++
	return true, entry.Reason
}

// Add puts a source/symbol pair on cooldown.
func (imc *InMemoryCooldownCache) Add(source, symbol, reason string, ttl time.Duration) {
	imc.mu.Lock()
	defer imc.mu.Unlock()

	entry := &CooldownCacheEntry{
		Source:    source,
		Symbol:    symbol,
		Reason:    reason,
		CreatedAt: time.Now(),
	}

	if ttl > 0 {
		expiresAt := time.Now().Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	if _, exists := imc.cache[cooldownKey(source, symbol)]; !exists {
		imc.stats.TotalEntries++
	}
	imc.cache[cooldownKey(source, symbol)] = entry
	imc.stats.Adds++
	log.Printf("Source %s cooling down for %s: %s (TTL: %v)", source, symbol, reason, ttl)
}

// Remove lifts the cooldown for a source/symbol pair.
func (imc *InMemoryCooldownCache) Remove(source, symbol string) {
	imc.mu.Lock()
	defer imc.mu.Unlock()

	key := cooldownKey(source, symbol)
	if _, exists := imc.cache[key]; exists {
		delete(imc.cache, key)
		imc.stats.TotalEntries--
		log.Printf("Lifted cooldown on %s for %s", source, symbol)
	}
}

// Clear removes all cooldown entries.
func (imc *InMemoryCooldownCache) Clear() {
	imc.mu.Lock()
	defer imc.mu.Unlock()

	count := len(imc.cache)
	imc.cache = make(map[string]*CooldownCacheEntry)
	imc.stats.TotalEntries = 0
	log.Printf("Cleared %d cooldown entries", count)
}

// GetStats returns current cache statistics.
func (imc *InMemoryCooldownCache) GetStats() CooldownCacheStats {
	imc.mu.RLock()
	defer imc.mu.RUnlock()
	return imc.stats
}

// LogStats logs current cache statistics.
func (imc *InMemoryCooldownCache) LogStats() {
	stats := imc.GetStats()
	log.Printf("Cooldown Cache Stats - Total: %d, Hits: %d, Misses: %d, Adds: %d, Expired: %d",
		stats.TotalEntries, stats.Hits, stats.Misses, stats.Adds, stats.ExpiredEntries)
}

// CleanupExpired removes entries whose expiration has passed.
func (imc *InMemoryCooldownCache) CleanupExpired() int {
	imc.mu.Lock()
	defer imc.mu.Unlock()

	expiredCount := 0
	now := time.Now()
	for key, entry := range imc.cache {
		if entry.ExpiresAt != nil && now.After(*entry.ExpiresAt) {
			delete(imc.cache, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		imc.stats.ExpiredEntries += int64(expiredCount)
		imc.stats.TotalEntries -= int64(expiredCount)
		imc.stats.LastCleanup = now
	}

	return expiredCount
}

// GetActiveCooldowns returns all entries that are still in effect.
func (imc *InMemoryCooldownCache) GetActiveCooldowns() ([]CooldownCacheEntry, error) {
	imc.mu.RLock()
	defer imc.mu.RUnlock()

	var entries []CooldownCacheEntry
	for _, entry := range imc.cache {
		if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
			continue
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}

// Close is a no-op for the in-memory cache.
func (imc *InMemoryCooldownCache) Close() error {
	return nil
}
