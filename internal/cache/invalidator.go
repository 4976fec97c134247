// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cache propagates "this content changed" signals and keeps the
read-side chapter index warm.

# Invalidation

The ingestion service calls [Invalidator.Invalidate] after every write. The
call never fails from the caller's point of view: a [Broadcaster] forwards the
reference to each registered [Sink] and logs sink failures instead of
returning them.

Sinks shipped with this package:

  - [RedisSink]: drops the cached chapter index and publishes on a channel.
  - [Webhook]: POSTs a signed purge request to the front-end.

# Read cache

[IndexCache] is a Redis-backed read-through cache with singleflight miss
collapsing, used for the chapter status queries.
*/
package cache

import (
	stdctx "context"
	"log/slog"
	"strconv"
	"sync"
)

// Kind names the type of content a [Ref] points at.
type Kind string

const (
	KindStory   Kind = "story"
	KindChapter Kind = "chapter"
)

// Ref identifies one piece of content whose cached renderings are stale.
type Ref struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

// Story returns a reference to a story.
func Story(id int64) Ref { return Ref{Kind: KindStory, ID: id} }

// Chapter returns a reference to a chapter.
func Chapter(id int64) Ref { return Ref{Kind: KindChapter, ID: id} }

// String renders the ref as "kind:id" for logs.
func (ref Ref) String() string {
	return string(ref.Kind) + ":" + strconv.FormatInt(ref.ID, 10)
}

// Invalidator is the fire-and-forget signal used by the ingestion service.
type Invalidator interface {
	Invalidate(context stdctx.Context, ref Ref)
}

// Sink is one destination of invalidation events.
type Sink interface {
	Name() string
	Purge(context stdctx.Context, ref Ref) error
}

// # Broadcaster

// Broadcaster fans an invalidation out to every registered [Sink].
//
// Sinks are registered explicitly at startup; it is safe to Register while
// invalidations are in flight.
type Broadcaster struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *slog.Logger
}

// NewBroadcaster returns a broadcaster with no sinks.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// Register adds a sink. Nil sinks are ignored.
func (broadcaster *Broadcaster) Register(sink Sink) {
	if sink == nil {
		return
	}
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	broadcaster.sinks = append(broadcaster.sinks, sink)
}

// Len reports the number of registered sinks.
func (broadcaster *Broadcaster) Len() int {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()
	return len(broadcaster.sinks)
}

// Invalidate implements [Invalidator]. Sink errors are logged, never returned.
func (broadcaster *Broadcaster) Invalidate(context stdctx.Context, ref Ref) {
	broadcaster.mu.RLock()
	sinks := make([]Sink, len(broadcaster.sinks))
	copy(sinks, broadcaster.sinks)
	broadcaster.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Purge(context, ref); err != nil {
			broadcaster.logger.WarnContext(context, "cache_purge_failed",
				slog.String("sink", sink.Name()),
				slog.String("ref", ref.String()),
				slog.Any("error", err),
			)
		}
	}
}

// # Nop

// Nop discards every invalidation.
type Nop struct{}

// Invalidate implements [Invalidator].
func (Nop) Invalidate(stdctx.Context, Ref) {}
