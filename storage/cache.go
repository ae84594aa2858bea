package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"board-dnd/domain"
)

type backend interface {
	FetchBoard(ctx context.Context, userID string) ([]domain.Stack, []domain.Item, error)
	EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error
}

// Cache wraps a Storage instance with Redis-backed caching for board reads.
// Any enqueued command invalidates the user's cached board, since the commit
// service will rewrite it.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

type cachedBoard struct {
	Stacks []domain.Stack `json:"stacks"`
	Items  []domain.Item  `json:"items"`
}

func (c *Cache) FetchBoard(ctx context.Context, userID string) ([]domain.Stack, []domain.Item, error) {
	if board, ok := c.loadFromCache(ctx, userID); ok {
		return board.Stacks, board.Items, nil
	}

	stacks, items, err := c.base.FetchBoard(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	c.store(ctx, userID, cachedBoard{Stacks: stacks, Items: items})
	return stacks, items, nil
}

func (c *Cache) EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error {
	if err := c.base.EnqueueCommands(ctx, userID, cmds); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, userID string) (cachedBoard, bool) {
	if c.redis == nil {
		return cachedBoard{}, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(userID)).Err()
		}
		return cachedBoard{}, false
	}
	var board cachedBoard
	if err := json.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(userID)).Err()
		return cachedBoard{}, false
	}
	return board, true
}

func (c *Cache) store(ctx context.Context, userID string, board cachedBoard) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(userID)).Result()
}

func boardCacheKey(userID string) string {
	return "board:" + userID
}
