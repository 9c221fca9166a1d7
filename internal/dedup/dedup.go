// Package dedup suppresses repeat alerts. Each delivered alert claims
// a cache key derived from its rule and record fingerprint; while the
// claim lives, the same pair is suppressed. The cache is advisory: if
// it is unreachable the pipeline delivers everything rather than
// nothing.
package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
)

// Config holds dedup cache configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL is how long a delivered alert suppresses identical ones.
	TTL    time.Duration
	Logger *slog.Logger
}

// Cache is a Redis-backed alert deduplicator, safe for concurrent use.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a cache client. The server is not contacted until Start
// or the first Seen call.
func New(cfg Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Cache{
		client: client,
		ttl:    cfg.TTL,
		logger: logging.Default(cfg.Logger).With("component", "dedup"),
	}
}

// Start probes the cache. Unlike the bus and the store, an absent
// cache is not fatal: alerting runs without suppression until it
// comes back.
func (c *Cache) Start(ctx context.Context) {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("dedup cache unreachable, alerts will not be deduplicated", "error", err)
		return
	}
	c.logger.Info("dedup cache connected", "ttl", c.ttl)
}

// Seen claims the rule/fingerprint pair and reports whether it was
// already claimed within the TTL. Cache errors report false: fail
// open, a duplicate alert beats a dropped one.
func (c *Cache) Seen(ctx context.Context, ruleName, fingerprint string) bool {
	if fingerprint == "" {
		fingerprint = "unknown"
	}
	key := "alert:" + ruleName + ":" + fingerprint

	set, err := c.client.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		c.logger.Warn("dedup check failed, delivering", "rule", ruleName, "error", err)
		return false
	}
	return !set
}

// Close releases the cache connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
