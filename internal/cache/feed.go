package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// FeedCachePrefix is the key prefix for cached feed pages
	FeedCachePrefix = "feed:page:"

	// FeedGenerationKey holds the counter that namespaces every page key.
	// Bumping it orphans all cached pages at once.
	FeedGenerationKey = "feed:gen"

	// FeedCacheTTL bounds how stale a page can get, which also bounds
	// drift of the trending window.
	FeedCacheTTL = 60 * time.Second
)

// FeedCache caches the ordered post IDs of feed pages. Posts are hydrated
// from the store on read so counters are never served stale.
type FeedCache interface {
	// GetPage returns the cached page. On a miss Found is false and
	// Generation still names the generation the lookup ran under.
	GetPage(ctx context.Context, scope string, page, limit int) (PageEntry, error)

	// SetPage stores a page read under gen. The write is dropped if the
	// generation moved on since.
	SetPage(ctx context.Context, gen int64, scope string, page, limit int, ids []string, total int) error

	// Invalidate bumps the generation.
	Invalidate(ctx context.Context) error
}

// PageEntry is the result of a page lookup.
type PageEntry struct {
	IDs        []string
	Total      int
	Found      bool
	Generation int64
}

// RedisFeedCache implements FeedCache with one sorted set per page (IDs
// scored by position) plus a total counter key.
type RedisFeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{client: client}
}

// ScopeAll, ScopeTrending and ScopeAuthor name the cacheable listings.
const (
	ScopeAll      = "all"
	ScopeTrending = "trending"
)

func ScopeAuthor(authorID string) string {
	return "author:" + authorID
}

func pageKey(gen int64, scope string, page, limit int) string {
	return fmt.Sprintf("%s%d:%s:%d:%d", FeedCachePrefix, gen, scope, page, limit)
}

func totalKey(gen int64, scope string, page, limit int) string {
	return pageKey(gen, scope, page, limit) + ":total"
}

func readGeneration(ctx context.Context, cmd redis.Cmdable) (int64, error) {
	gen, err := cmd.Get(ctx, FeedGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

// GetPage reads the page set and its total in one pipeline.
func (c *RedisFeedCache) GetPage(ctx context.Context, scope string, page, limit int) (PageEntry, error) {
	startTime := time.Now()
	gen, err := readGeneration(ctx, c.client)
	if err != nil {
		log.Printf("[FeedCache] GetPage FAILED: scope=%s page=%d err=%v", scope, page, err)
		return PageEntry{}, err
	}
	entry := PageEntry{Generation: gen}

	pipe := c.client.Pipeline()
	totalCmd := pipe.Get(ctx, totalKey(gen, scope, page, limit))
	idsCmd := pipe.ZRange(ctx, pageKey(gen, scope, page, limit), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("[FeedCache] GetPage FAILED: scope=%s page=%d err=%v", scope, page, err)
		return PageEntry{}, fmt.Errorf("get page: %w", err)
	}

	total, err := totalCmd.Int()
	if errors.Is(err, redis.Nil) {
		log.Printf("[FeedCache] GetPage MISS: gen=%d scope=%s page=%d limit=%d", gen, scope, page, limit)
		return entry, nil
	}
	if err != nil {
		return PageEntry{}, fmt.Errorf("parse total: %w", err)
	}

	entry.IDs, entry.Total, entry.Found = idsCmd.Val(), total, true
	log.Printf("[FeedCache] GetPage HIT: gen=%d scope=%s page=%d returned=%d duration=%v",
		gen, scope, page, len(entry.IDs), time.Since(startTime))
	return entry, nil
}

// SetPage writes the page in one transaction: DEL + ZADD + SET total, all
// with the page TTL. The generation key is watched so a concurrent
// Invalidate aborts the write.
func (c *RedisFeedCache) SetPage(ctx context.Context, gen int64, scope string, page, limit int, ids []string, total int) error {
	key := pageKey(gen, scope, page, limit)
	stale := false

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			stale = true
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(ids) > 0 {
				members := make([]redis.Z, len(ids))
				for i, id := range ids {
					members[i] = redis.Z{Score: float64(i), Member: id}
				}
				pipe.ZAdd(ctx, key, members...)
				pipe.Expire(ctx, key, FeedCacheTTL)
			}
			pipe.Set(ctx, totalKey(gen, scope, page, limit), strconv.Itoa(total), FeedCacheTTL)
			return nil
		})
		return err
	}, FeedGenerationKey)

	if errors.Is(err, redis.TxFailedErr) {
		stale, err = true, nil
	}
	if err != nil {
		log.Printf("[FeedCache] SetPage FAILED: scope=%s page=%d err=%v", scope, page, err)
		return fmt.Errorf("set page: %w", err)
	}
	if stale {
		log.Printf("[FeedCache] SetPage SKIPPED: stale gen=%d scope=%s page=%d", gen, scope, page)
		return nil
	}

	log.Printf("[FeedCache] SetPage OK: gen=%d scope=%s page=%d ids=%d total=%d", gen, scope, page, len(ids), total)
	return nil
}

// Invalidate increments the generation counter.
func (c *RedisFeedCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, FeedGenerationKey).Result()
	if err != nil {
		log.Printf("[FeedCache] Invalidate FAILED: err=%v", err)
		return fmt.Errorf("bump generation: %w", err)
	}
	log.Printf("[FeedCache] Invalidate OK: gen=%d", gen)
	return nil
}
