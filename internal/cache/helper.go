package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"realblog/internal/middleware"
	"realblog/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	postKeyPrefix     = "post:%s"
	homeFeedKeyPrefix = "feed:home:%d:%d"
	homeFeedPattern   = "feed:home:*"
)

const (
	PostTTL     = 10 * time.Minute
	HomeFeedTTL = time.Minute
)

// PostKey is the cache key of an anonymous post detail view.
func PostKey(slug string) string {
	return fmt.Sprintf(postKeyPrefix, slug)
}

// HomeFeedKey is the cache key of an anonymous home feed page.
func HomeFeedKey(limit, offset int) string {
	return fmt.Sprintf(homeFeedKeyPrefix, limit, offset)
}

// GetJSON reads key into dest. Returns (true, nil) on a hit and (false, nil) on a miss.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside serves dest from the cache, or runs fetch to fill it and caches the result.
// Cache failures never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	}
	if client != nil {
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate deletes the given keys.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.String("error", err.Error()))
	}
}

// InvalidatePost drops a post detail and every cached home feed page.
func InvalidatePost(ctx context.Context, slug string) {
	Invalidate(ctx, PostKey(slug))
	InvalidateHomeFeed(ctx)
}

// InvalidateHomeFeed drops every cached home feed page.
func InvalidateHomeFeed(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, homeFeedPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache scan failed", slog.String("error", err.Error()))
		return
	}
	Invalidate(ctx, keys...)
}
