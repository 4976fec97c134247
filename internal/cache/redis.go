// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// redisClient is the subset of go-redis used here; *redis.Client satisfies it.
type redisClient interface {
	Get(context stdctx.Context, key string) *redis.StringCmd
	Set(context stdctx.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(context stdctx.Context, keys ...string) *redis.IntCmd
	Incr(context stdctx.Context, key string) *redis.IntCmd
	Publish(context stdctx.Context, channel string, message any) *redis.IntCmd
}

// # Redis Sink

// RedisSink retires the cached chapter index of invalidated stories and
// publishes every invalidation on a channel for other subscribers.
//
// A story purge bumps the story's generation counter, so an index loaded
// before the purge can never be read back afterwards.
type RedisSink struct {
	client  redisClient
	prefix  string
	channel string
	now     func() time.Time
}

// event is the pub/sub payload.
type event struct {
	Ref
	At time.Time `json:"at"`
}

// NewRedisSink builds a sink. prefix must match the [IndexCache] prefix.
func NewRedisSink(client redisClient, prefix, channel string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, channel: channel, now: time.Now}
}

// Name implements [Sink].
func (sink *RedisSink) Name() string { return "redis" }

// Purge implements [Sink].
func (sink *RedisSink) Purge(context stdctx.Context, ref Ref) error {
	if ref.Kind == KindStory {
		generation, err := sink.client.Incr(context, generationKey(sink.prefix, ref.ID)).Result()
		if err != nil {
			return fmt.Errorf("redis: failed to bump index generation %d: %w", ref.ID, err)
		}
		if err := sink.client.Del(context, indexKey(sink.prefix, ref.ID, generation-1)).Err(); err != nil {
			return fmt.Errorf("redis: failed to drop chapter index %d: %w", ref.ID, err)
		}
	}

	payload, err := json.Marshal(event{Ref: ref, At: sink.now().UTC()})
	if err != nil {
		return fmt.Errorf("redis: failed to encode event: %w", err)
	}
	if err := sink.client.Publish(context, sink.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: failed to publish %s: %w", ref, err)
	}
	return nil
}

// # Index Cache

// IndexCache is a read-through JSON cache keyed by story id.
//
// Entries are keyed by the story's generation, which [RedisSink.Purge]
// increments. Concurrent misses for the same key share one load. Redis
// failures degrade to a direct load; they are logged and never returned.
type IndexCache[T any] struct {
	client redisClient
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewIndexCache builds a cache whose entries expire after ttl.
func NewIndexCache[T any](client redisClient, prefix string, ttl time.Duration, logger *slog.Logger) *IndexCache[T] {
	return &IndexCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

/*
GetOrLoad returns the cached value for id, calling load on a miss.

Parameters:
  - context: context.Context
  - id: int64 (Story ID)
  - load: Loader for the authoritative value

Returns:
  - T: The cached or freshly loaded value
  - error: Only errors returned by load
*/
func (cache *IndexCache[T]) GetOrLoad(context stdctx.Context, id int64, load func(stdctx.Context) (T, error)) (T, error) {
	generation, err := cache.generation(context, id)
	if err != nil {
		cache.logger.WarnContext(context, "index_cache_read_failed", slog.Int64("story_id", id), slog.Any("error", err))
		return load(context)
	}
	key := indexKey(cache.prefix, id, generation)

	raw, err := cache.client.Get(context, key).Bytes()
	switch {
	case err == nil:
		var value T
		if decodeErr := json.Unmarshal(raw, &value); decodeErr == nil {
			return value, nil
		}
		cache.logger.WarnContext(context, "index_cache_decode_failed", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		cache.logger.WarnContext(context, "index_cache_read_failed", slog.String("key", key), slog.Any("error", err))
	}

	shared, err, _ := cache.group.Do(key, func() (any, error) {
		value, err := load(context)
		if err != nil {
			return nil, err
		}

		if encoded, encodeErr := json.Marshal(value); encodeErr == nil {
			if setErr := cache.client.Set(context, key, encoded, cache.ttl).Err(); setErr != nil {
				cache.logger.WarnContext(context, "index_cache_write_failed", slog.String("key", key), slog.Any("error", setErr))
			}
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return shared.(T), nil
}

// generation reads the purge counter of a story; a missing counter is zero.
func (cache *IndexCache[T]) generation(context stdctx.Context, id int64) (int64, error) {
	generation, err := cache.client.Get(context, generationKey(cache.prefix, id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

func indexKey(prefix string, id, generation int64) string {
	return prefix + strconv.FormatInt(id, 10) + ":" + strconv.FormatInt(generation, 10)
}

func generationKey(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10) + ":gen"
}
