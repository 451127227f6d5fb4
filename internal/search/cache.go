// Package search caches assembled search result pages in Redis. Keys cover
// the full page identity (term, viewer, cursor, limit) because liked_by_me
// varies per viewer. Entries expire by TTL and are flushed wholesale on any
// write that changes page contents: post create or delete, and like or echo
// toggles, since cached pages embed counts and liked_by_me.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/echo-social/echonet/internal/feed"
	"github.com/echo-social/echonet/pkg/config"
	pkgredis "github.com/echo-social/echonet/pkg/redis"
)

const keyPrefix = "search:"

// PageCache implements feed.SearchCache on top of Redis, collapsing
// concurrent misses for the same key with singleflight.
type PageCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *PageCache {
	return &PageCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "search-cache"),
	}
}

func (c *PageCache) get(ctx context.Context, key string) (*feed.Page, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var page feed.Page
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &page, true
}

func (c *PageCache) set(ctx context.Context, key string, page *feed.Page) {
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached page for the key, or computes and stores
// it. The second return reports a cache hit.
func (c *PageCache) GetOrCompute(
	ctx context.Context,
	term, viewerID, cursor string,
	limit int,
	compute func() (*feed.Page, error),
) (*feed.Page, bool, error) {
	key := c.buildKey(term, viewerID, cursor, limit)
	if page, ok := c.get(ctx, key); ok {
		return page, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if page, ok := c.get(ctx, key); ok {
			return page, nil
		}
		page, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, page)
		return page, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*feed.Page), false, nil
}

// Invalidate removes every cached search page.
func (c *PageCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Debug("search cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since startup.
func (c *PageCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PageCache) buildKey(term, viewerID, cursor string, limit int) string {
	raw := fmt.Sprintf("%s|%s|%s|%d", term, viewerID, cursor, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
