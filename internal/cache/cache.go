// Package cache is a two-tier cache: an in-memory L1 in front of an optional Redis L2.
// Concurrent loads of the same key are collapsed into one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 1024
	cleanupInterval   = 5 * time.Minute
)

// Tiered implements L1 (memory) + L2 (Redis) caching.
type Tiered struct {
	l1         sync.Map      // key -> *entry
	rdb        *redis.Client // nil if Redis is unavailable
	ttl        time.Duration
	maxEntries int
	group      singleflight.Group
	metrics    *metrics.Metrics
	stop       chan struct{}
	closeOnce  sync.Once
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New creates a cache. redisURL may be empty to disable L2; an invalid or
// unreachable Redis also disables it.
func New(redisURL string, ttl time.Duration, maxEntries int, m *metrics.Metrics) *Tiered {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Tiered{ttl: ttl, maxEntries: maxEntries, metrics: m, stop: make(chan struct{})}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
				rdb.Close()
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	slog.Info("cache: initialized", slog.Duration("ttl", ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", maxEntries))
	go c.cleanupLoop()
	return c
}

// Key builds a deterministic cache key from parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("nova:%x", hash[:12])
}

// Get tries L1, then L2. An L2 hit populates L1.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Load(key); ok {
		e := val.(*entry)
		if time.Now().Before(e.expiresAt) {
			c.count("l1_hit")
			return e.data, true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.count("l2_hit")
			c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})
			return data, true
		}
		if err != redis.Nil {
			slog.DebugContext(ctx, "cache: L2 get failed", slog.Any("error", err))
		}
	}

	c.count("miss")
	return nil, false
}

// Set stores data in both tiers.
func (c *Tiered) Set(ctx context.Context, key string, data []byte) {
	c.evictIfNeeded()
	c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.DebugContext(ctx, "cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Delete removes key from both tiers.
func (c *Tiered) Delete(ctx context.Context, key string) {
	c.l1.Delete(key)
	if c.rdb != nil {
		c.rdb.Del(ctx, key)
	}
}

// Ping checks the L2 connection. A cache without Redis is always ready.
func (c *Tiered) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close stops the cleanup loop and the Redis client.
func (c *Tiered) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		if c.rdb != nil {
			err = c.rdb.Close()
		}
	})
	return err
}

// GetOrLoad returns the cached value for key, or calls load once across concurrent
// callers and caches a successful result. Errors are not cached.
func GetOrLoad[T any](ctx context.Context, c *Tiered, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if data, ok := c.Get(ctx, key); ok {
		var out T
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		c.Delete(ctx, key)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Shared by every waiter; outlives the caller that started it
		loadCtx := context.WithoutCancel(ctx)
		out, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(out); err == nil {
			c.Set(loadCtx, key, data)
		}
		return out, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (c *Tiered) count(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookupTotal.WithLabelValues(result).Inc()
	}
}

// evictIfNeeded removes expired entries, then the oldest, while L1 is full.
func (c *Tiered) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(c.ttl + time.Hour)
		c.l1.Range(func(key, val any) bool {
			// Earliest expiry is the oldest entry
			if e, ok := val.(*entry); ok && e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

func (c *Tiered) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
