// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package checkpoint memoizes idempotent, side-effectful phase steps
// keyed by (transition, step) for a TTL, per spec.md §4.3. It is
// backed by redis/go-redis/v9, the TTL key-value store the rest of the
// example pack (notably kubernaut's caching layer) reaches for rather
// than a hand-rolled in-process map, since checkpoints must survive a
// worker restart within the TTL window.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is spec.md §4.3's default checkpoint lifetime.
const DefaultTTL = 180 * time.Second

// Result is the memoized outcome of a checkpointed step: a success
// flag plus an opaque response payload, mirroring the "(ok, response)"
// tuple shape spec.md's adapters return (e.g. create()'s
// "(submitted_ok, response)").
type Result struct {
	OK       bool            `json:"ok"`
	Response json.RawMessage `json:"response"`
}

// Cache is a TTL-keyed store of Results, scoped to one transition at a
// time (spec.md §4.8: "single writer per key because ... a transition
// runs one attempt at a time after dedup").
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing redis client. Callers construct the *redis.Client
// (pointing at a real Redis, or at a miniredis instance in tests) and
// hand it to New, the same dependency-injection shape the teacher uses
// for its backend clients.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, ttl: DefaultTTL}
}

// WithTTL returns a copy of c using ttl instead of DefaultTTL.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	return &Cache{rdb: c.rdb, ttl: ttl}
}

func key(transitionID, step string) string {
	return fmt.Sprintf("checkpoint:%s:%s", transitionID, step)
}

// Get returns the memoized Result for (transitionID, step), or
// (nil, false, nil) on a cache miss. Callers must treat a miss as "no
// cached result" and fall back per the caller's own policy (e.g.
// internal/phases consults the event log per spec.md §9 Open Question
// iii before re-invoking the side effect).
func (c *Cache) Get(ctx context.Context, transitionID, step string) (*Result, bool, error) {
	raw, err := c.rdb.Get(ctx, key(transitionID, step)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

// Put stores r under (transitionID, step) with the cache's TTL. Per
// spec.md §4.3, "only successful results ... are cached" — Put is a
// no-op if !r.OK, so a failed attempt is never memoized and a retry
// always re-invokes the side effect.
func (c *Cache) Put(ctx context.Context, transitionID, step string, r Result) error {
	if !r.OK {
		return nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(transitionID, step), raw, c.ttl).Err()
}

// Invalidate removes any memoized Result for (transitionID, step),
// used when a new transition of the same kind must not observe a
// stale checkpoint from a superseded one.
func (c *Cache) Invalidate(ctx context.Context, transitionID, step string) error {
	return c.rdb.Del(ctx, key(transitionID, step)).Err()
}
