package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a resolved role set is reused.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores resolved permission info keyed by user id.
type Cache interface {
	Get(ctx context.Context, userID int64) (*PermissionInfo, bool)
	Put(ctx context.Context, userID int64, info *PermissionInfo)
	Invalidate(ctx context.Context, userID int64)
}

type memoryEntry struct {
	info     *PermissionInfo
	storedAt time.Time
}

// MemoryCache is a process-local Cache with a fixed TTL.
type MemoryCache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[int64]memoryEntry
}

// NewMemoryCache constructs a MemoryCache. A non-positive ttl falls back to DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now, items: make(map[int64]memoryEntry)}
}

// Get returns the entry for userID unless it is missing or older than the TTL.
func (c *MemoryCache) Get(_ context.Context, userID int64) (*PermissionInfo, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.items[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		if current, ok := c.items[userID]; ok && current.storedAt.Equal(entry.storedAt) {
			delete(c.items, userID)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.info, true
}

// Put stores info stamped with the current time.
func (c *MemoryCache) Put(_ context.Context, userID int64, info *PermissionInfo) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items[userID] = memoryEntry{info: info, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the entry for userID.
func (c *MemoryCache) Invalidate(_ context.Context, userID int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, userID)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

const redisKeyPrefix = "rbac:perm:"

// RedisCache shares resolved permission info between processes. Expiry is delegated to Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache constructs a RedisCache. A non-positive ttl falls back to DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get loads the entry for userID. Redis failures are logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, userID int64) (*PermissionInfo, bool) {
	payload, err := c.client.Get(ctx, redisKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("rbac cache get", userID, err)
		}
		return nil, false
	}
	var info PermissionInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		c.warn("rbac cache decode", userID, err)
		return nil, false
	}
	return &info, true
}

// Put stores info with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, userID int64, info *PermissionInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		c.warn("rbac cache encode", userID, err)
		return
	}
	if err := c.client.Set(ctx, redisKey(userID), raw, c.ttl).Err(); err != nil {
		c.warn("rbac cache set", userID, err)
	}
}

// Invalidate deletes the entry for userID.
func (c *RedisCache) Invalidate(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		c.warn("rbac cache invalidate", userID, err)
	}
}

func (c *RedisCache) warn(msg string, userID int64, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
