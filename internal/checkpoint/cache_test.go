// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package checkpoint

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb), mr
}

func TestCacheMissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "t1", "create_resource"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := Result{OK: true, Response: json.RawMessage(`{"id":"vpc-1"}`)}
	if err := c.Put(ctx, "t1", "create_resource", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(ctx, "t1", "create_resource")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got.Response) != string(want.Response) {
		t.Fatalf("Response = %s, want %s", got.Response, want.Response)
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "t1", "create_resource", Result{OK: false}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "t1", "create_resource"); ok {
		t.Fatal("failed result should not be cached")
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c, mr := newTestCache(t)
	c = c.WithTTL(50 * time.Millisecond)
	ctx := context.Background()

	if err := c.Put(ctx, "t1", "create_resource", Result{OK: true, Response: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mr.FastForward(100 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "t1", "create_resource"); ok {
		t.Fatal("expected checkpoint to expire")
	}
}

func TestCacheScopedByTransition(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "t1", "create_resource", Result{OK: true, Response: json.RawMessage(`{"a":1}`)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "t2", "create_resource"); ok {
		t.Fatal("checkpoint should be scoped to its transition")
	}
}
