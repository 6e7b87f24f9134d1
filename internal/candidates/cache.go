// Package candidates caches reconstruction results in Redis and publishes
// the candidates of a run to Kafka.
package candidates

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/redis"
)

const keyPrefix = "recon:"

// Cache stores search results keyed by their inputs. Concurrent requests
// for the same key share a single computation.
type Cache struct {
	client  *pkgredis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a Cache. m may be nil.
func NewCache(client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "candidate-cache"),
	}
}

// Key derives the cache key of a search from the dictionary fingerprint,
// the constraints and every option that changes the output.
func Key(fingerprint string, c reconstruct.Constraints, opts reconstruct.Options) string {
	var b strings.Builder
	b.WriteString(fingerprint)
	b.WriteString("|")
	b.WriteString(c.Key())
	fmt.Fprintf(&b, "|t=%d|f=%d|d=%s|k=%d",
		opts.EarlyEmitThreshold,
		opts.MaxFrontier,
		strconv.FormatBool(opts.DedupeStates),
		opts.MaxPathsPerState,
	)
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Get returns the cached result for key. Redis errors count as misses.
func (c *Cache) Get(ctx context.Context, key string) (*reconstruct.Result, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var res reconstruct.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CandidateCacheHits.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &res, true
}

// Set stores res under key. Failures are logged, not returned.
func (c *Cache) Set(ctx context.Context, key string, res reconstruct.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key, or runs compute and
// caches what it returns. Failed computations are not cached. The boolean
// reports a cache hit.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() (reconstruct.Result, error)) (reconstruct.Result, bool, error) {
	if res, ok := c.Get(ctx, key); ok {
		return *res, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return reconstruct.Result{}, false, err
	}
	return val.(reconstruct.Result), false, nil
}

// Invalidate drops every cached result and returns how many were removed.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating candidate cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns the hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CandidateCacheMisses.Inc()
	}
}
