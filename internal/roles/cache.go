package roles

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bugtrack/bugtrack/internal/rbac"
)

const cacheKeyPrefix = "roles:bycodes:"

// CachedStore is a Redis read-through cache in front of a role store. Role
// documents are read-mostly reference data; a short TTL keeps admin edits
// visible without querying Postgres on every request.
type CachedStore struct {
	inner  rbac.RoleStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps store with a Redis cache. A nil client disables
// caching and delegates directly.
func NewCachedStore(inner rbac.RoleStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

// FindByCodes implements rbac.RoleStore. Cache failures fall through to the
// underlying store; only the store's own failure propagates.
func (c *CachedStore) FindByCodes(ctx context.Context, codes []string) ([]Role, error) {
	if c.client == nil || len(codes) == 0 {
		return c.inner.FindByCodes(ctx, codes)
	}
	key := cacheKey(codes)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []Role
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.Warn("role cache entry corrupt, refetching", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("role cache read failed", slog.Any("error", err))
	}

	roles, err := c.inner.FindByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(roles); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("role cache write failed", slog.Any("error", err))
		}
	}
	return roles, nil
}

// Invalidate drops cached entries after a role document changes. The keys are
// code-set scoped, so a flush by prefix keeps it simple.
func (c *CachedStore) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("role cache invalidate failed", slog.Any("error", err))
			return
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("role cache scan failed", slog.Any("error", err))
	}
}

func cacheKey(codes []string) string {
	sorted := make([]string, len(codes))
	copy(sorted, codes)
	sort.Strings(sorted)
	return cacheKeyPrefix + strings.Join(sorted, ",")
}
