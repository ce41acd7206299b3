// Package cache provides a redis-backed, best-effort cache layer (spec
// SPEC_FULL.md §4.13): it persists the engine's per-symbol last-signal
// timestamp across process restarts, and caches the most recent indicator
// snapshot per symbol for cheap status introspection. Grounded on
// src/infrastructure/data/cache.go's RedisCacheManager (key prefixing,
// JSON-wrapped entries, TTL-based expiry). Neither call site is required
// for any spec invariant to hold: the methods return redis errors to the
// caller, the engine treats a read error like a cache miss, and the
// analysis service ignores a write error, so an unavailable redis never
// changes engine or analysis semantics.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m37335/threegate/internal/condition"
	"github.com/m37335/threegate/internal/metricsx"
)

const (
	keyPrefix          = "threegate:"
	signalTimePrefix   = keyPrefix + "last_signal:"
	snapshotPrefix     = keyPrefix + "snapshot:"
	defaultSnapshotTTL = 10 * time.Minute
)

// Cache wraps a redis client with the key conventions this module uses. The
// zero value is not usable; construct with New.
type Cache struct {
	client  redis.Cmdable
	metrics *metricsx.Registry
}

// New constructs a Cache backed by client. client is typically a
// *redis.Client built from config.Config's redis settings, but any
// redis.Cmdable (including a redismock double) satisfies it.
func New(client redis.Cmdable) *Cache {
	return &Cache{client: client}
}

// SetMetrics wires a metrics registry for cache-hit/miss observability
// (spec SPEC_FULL.md §4.10); nil is a safe no-op default.
func (c *Cache) SetMetrics(reg *metricsx.Registry) {
	c.metrics = reg
}

func (c *Cache) recordHit(cacheType string) {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(cacheType)
	}
}

func (c *Cache) recordMiss(cacheType string) {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(cacheType)
	}
}

// GetLastSignalTime returns the last emitted signal timestamp for symbol,
// or ok=false on a cache miss. A redis error returns ok=false together with
// the error; the engine treats either case as a miss and falls back to
// in-memory-only behavior (spec SPEC_FULL.md §4.13).
func (c *Cache) GetLastSignalTime(ctx context.Context, symbol string) (time.Time, bool, error) {
	raw, err := c.client.Get(ctx, signalTimePrefix+symbol).Result()
	if errors.Is(err, redis.Nil) {
		c.recordMiss("last_signal_time")
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cache get last_signal_time: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing cached last_signal_time: %w", err)
	}
	c.recordHit("last_signal_time")
	return t, true, nil
}

// SetLastSignalTime persists the last emitted signal timestamp for symbol
// with no expiry, so a process restart does not reset the engine's
// 15-minute rate-limit window.
func (c *Cache) SetLastSignalTime(ctx context.Context, symbol string, t time.Time) error {
	if err := c.client.Set(ctx, signalTimePrefix+symbol, t.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("cache set last_signal_time: %w", err)
	}
	return nil
}

// GetSnapshot returns the most recently cached indicator snapshot for
// symbol, for cheap /status introspection (spec SPEC_FULL.md §4.13). A
// cache miss or redis error both yield ok=false.
func (c *Cache) GetSnapshot(ctx context.Context, symbol string) (condition.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, snapshotPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		c.recordMiss("snapshot")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get snapshot: %w", err)
	}
	var snap condition.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("decoding cached snapshot: %w", err)
	}
	c.recordHit("snapshot")
	return snap, true, nil
}

// SetSnapshot caches snap for symbol with the default TTL, so a stale
// snapshot never lingers past a reasonable analysis cadence.
func (c *Cache) SetSnapshot(ctx context.Context, symbol string, snap condition.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotPrefix+symbol, data, defaultSnapshotTTL).Err(); err != nil {
		return fmt.Errorf("cache set snapshot: %w", err)
	}
	return nil
}
