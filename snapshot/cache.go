package snapshot

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"lini/domain"
)

// Cache wraps a Source with Redis-backed caching. All queries of one board
// live in a single hash so a mutation can evict them together.
type Cache struct {
	base    Source
	redis   *redis.Client
	ttl     time.Duration
	boardID int64
	scope   string
}

// NewCache creates a caching source. scope separates callers that see
// different snapshots of the same board, e.g. one per user.
func NewCache(base Source, client *redis.Client, ttl time.Duration, boardID int64, scope string) *Cache {
	if base == nil {
		panic("snapshot.NewCache: base source is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, boardID: boardID, scope: scope}
}

func (c *Cache) Load(ctx context.Context, query string) (domain.Board, error) {
	if b, ok := c.loadFromCache(ctx, query); ok {
		return b, nil
	}
	b, err := c.base.Load(ctx, query)
	if err != nil {
		return domain.Board{}, err
	}
	c.store(ctx, query, b)
	return b, nil
}

// Invalidate evicts every cached query of the board for every scope, so no
// caller keeps serving a snapshot older than the last mutation.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	keys := []string{c.boardKey()}
	iter := c.redis.Scan(ctx, 0, c.boardKey()+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
		return err
	}
	if inv, ok := c.base.(Invalidator); ok {
		return inv.Invalidate(ctx)
	}
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, query string) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	data, err := c.redis.HGet(ctx, c.key(), query).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the source without failing.
			_ = c.redis.HDel(ctx, c.key(), query).Err()
		}
		return domain.Board{}, false
	}
	var b domain.Board
	if err := sonic.Unmarshal(data, &b); err != nil {
		_ = c.redis.HDel(ctx, c.key(), query).Err()
		return domain.Board{}, false
	}
	return b, true
}

func (c *Cache) store(ctx context.Context, query string, b domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	// Anti-forgery tokens belong to the session that fetched them.
	b.CSRFToken = ""
	data, err := sonic.Marshal(b)
	if err != nil {
		return
	}
	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, c.key(), query, data)
	pipe.Expire(ctx, c.key(), c.ttl)
	_, _ = pipe.Exec(ctx)
}

func (c *Cache) boardKey() string {
	return "snapshot:" + strconv.FormatInt(c.boardID, 10)
}

func (c *Cache) key() string {
	if c.scope == "" {
		return c.boardKey()
	}
	return c.boardKey() + ":" + c.scope
}
