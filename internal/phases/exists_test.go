// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/checkpoint"
	"github.com/resourceforge/reconciler/internal/runner"
	"github.com/resourceforge/reconciler/internal/store"
)

// missingCheckpointCache always misses, so tests can exercise the
// event-log fallback runCheckpointed falls back to.
type missingCheckpointCache struct {
	put int
}

func (missingCheckpointCache) Get(context.Context, string, string) (*checkpoint.Result, bool, error) {
	return nil, false, nil
}

func (c *missingCheckpointCache) Put(context.Context, string, string, checkpoint.Result) error {
	c.put++
	return nil
}

// eventLogStore is a minimal runner.Store fake exposing just enough to
// drive runCheckpointed's fallback: the resource's prior event log.
type eventLogStore struct {
	runner.Store
	events []*store.ResourceEvent
}

func (s *eventLogStore) ResourceEvents(_ context.Context, resourceID string) ([]*store.ResourceEvent, error) {
	var out []*store.ResourceEvent
	for _, e := range s.events {
		if string(e.ResourceID) == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

// TestRunCheckpointedFallsBackToEventLogOnCacheMiss covers spec.md §9's
// checkpoint-miss-after-known-success case: the checkpoint cache
// reports a miss (e.g. the Redis entry didn't survive a worker
// restart), but a matching event is already recorded against this
// transition, so the side effect must not run again.
func TestRunCheckpointedFallsBackToEventLogOnCacheMiss(t *testing.T) {
	priorResponse, err := json.Marshal(map[string]interface{}{"id": "fake-main"})
	if err != nil {
		t.Fatalf("marshal prior response: %v", err)
	}

	s := &eventLogStore{
		events: []*store.ResourceEvent{
			{
				Type:         addrs.EventCreateResource,
				ResourceID:   "r1",
				TransitionID: "t1",
				ExtraInfo:    priorResponse,
			},
		},
	}
	cache := &missingCheckpointCache{}

	pc := &runner.PhaseContext{
		Resource:   &store.Resource{ID: "r1"},
		Transition: &store.Transition{ID: "t1"},
		Store:      s,
		Checkpoint: cache,
	}

	invoked := false
	result, err := runCheckpointed(context.Background(), pc, createCheckpointStep, func() (checkpoint.Result, error) {
		invoked = true
		return checkpoint.Result{OK: true}, nil
	})
	if err != nil {
		t.Fatalf("runCheckpointed: %v", err)
	}
	if invoked {
		t.Fatal("side effect ran despite a prior success already recorded in the event log")
	}
	if !result.OK || string(result.Response) != string(priorResponse) {
		t.Fatalf("result = %+v, want OK=true with the recorded response", result)
	}
	if cache.put != 1 {
		t.Fatalf("expected the recovered result to be written back to the cache, Put called %d times", cache.put)
	}
}

// TestRunCheckpointedInvokesSideEffectWhenNoPriorEventExists confirms
// the fallback doesn't suppress a genuinely first-time side effect.
func TestRunCheckpointedInvokesSideEffectWhenNoPriorEventExists(t *testing.T) {
	s := &eventLogStore{}
	cache := &missingCheckpointCache{}

	pc := &runner.PhaseContext{
		Resource:   &store.Resource{ID: "r1"},
		Transition: &store.Transition{ID: "t1"},
		Store:      s,
		Checkpoint: cache,
	}

	invoked := false
	result, err := runCheckpointed(context.Background(), pc, createCheckpointStep, func() (checkpoint.Result, error) {
		invoked = true
		return checkpoint.Result{OK: true}, nil
	})
	if err != nil {
		t.Fatalf("runCheckpointed: %v", err)
	}
	if !invoked {
		t.Fatal("expected the side effect to run when neither the cache nor the event log has a record")
	}
	if !result.OK {
		t.Fatalf("result = %+v, want OK=true", result)
	}
}
