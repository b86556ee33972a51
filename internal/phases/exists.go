// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/checkpoint"
	"github.com/resourceforge/reconciler/internal/runner"
)

// fetchDelay and fetchRetries are spec.md §4.7's named constants for
// the post-create existence poll ("~3 s", "up to ~10 times").
const (
	fetchDelay   = 3 * time.Second
	fetchRetries = 10
)

const createCheckpointStep = "create_resource"

// EnsureExists implements spec.md §4.7's ensure_exists phase.
func EnsureExists(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error) {
	id := resourceIdentifier(pc)

	list, err := pc.Adapter.List(ctx)
	if err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
	}
	if resp, found := findByID(list, pc.Adapter.ExtractFromListResponse, id); found {
		if _, err := emitResourceEvent(ctx, pc, addrs.EventResourceFound, addrs.ReasonFoundBeforeCreation, nil); err != nil {
			return nil, err
		}
		if err := applyExistsHook(ctx, pc, resp); err != nil {
			return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
		}
		return &runner.NextPhase{Phase: addrs.PhaseEnsureHealthy}, nil
	}

	result, err := runCheckpointed(ctx, pc, createCheckpointStep, func() (checkpoint.Result, error) {
		if _, err := emitResourceEvent(ctx, pc, addrs.EventCreating, "", nil); err != nil {
			return checkpoint.Result{}, err
		}
		ok, resp, err := pc.Adapter.Create(ctx, pc.Resource.Slug, pc.Resource.ExtraData)
		if err != nil {
			return checkpoint.Result{}, err
		}
		raw, _ := json.Marshal(resp)
		if ok {
			if _, err := emitResourceEvent(ctx, pc, addrs.EventCreateResource, "", raw); err != nil {
				return checkpoint.Result{}, err
			}
		}
		return checkpoint.Result{OK: ok, Response: raw}, nil
	})
	if err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
	}
	if !result.OK {
		return nil, &runner.RetryRequest{EventType: addrs.EventCreationRequestFailed}
	}

	if _, err := emitResourceEvent(ctx, pc, addrs.EventCreationRequestSucceeded, "", nil); err != nil {
		return nil, err
	}
	var createResp map[string]interface{}
	_ = json.Unmarshal(result.Response, &createResp)
	if err := applyExistsHook(ctx, pc, createResp); err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
	}

	// Each attempt that reaches this point waits fetchDelay and then
	// lists once; a miss retries with resource_not_found, so the
	// re-checks are spread across attempts until the attempt index
	// reaches fetchRetries.
	if pc.AttemptIndex >= fetchRetries {
		return nil, &runner.RetryRequest{
			EventType: addrs.EventResourceNotFound,
			ExhaustionSideEffect: &runner.SideEffect{
				EventType: addrs.EventTerminalFailure,
				Reason:    addrs.ReasonRetriesExhausted,
			},
		}
	}

	select {
	case <-time.After(fetchDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	list, err = pc.Adapter.List(ctx)
	if err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventResourceNotFound}
	}
	if resp, found := findByID(list, pc.Adapter.ExtractFromListResponse, id); found {
		if _, err := emitResourceEvent(ctx, pc, addrs.EventResourceFound, addrs.ReasonFoundAfterCreation, nil); err != nil {
			return nil, err
		}
		if err := applyExistsHook(ctx, pc, resp); err != nil {
			return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
		}
		return &runner.NextPhase{Phase: addrs.PhaseEnsureHealthy}, nil
	}
	return nil, &runner.RetryRequest{EventType: addrs.EventResourceNotFound}
}

// applyExistsHook runs the adapter's exists_hook and persists the
// reconciled extra_data it returns (spec.md §4.1: "exists_hook ...
// reconciles provider identifiers and the canonical extra_data").
func applyExistsHook(ctx context.Context, pc *runner.PhaseContext, resp map[string]interface{}) error {
	reconciled, err := pc.Adapter.ExistsHook(ctx, resp, pc.Resource.ExtraData)
	if err != nil {
		return err
	}
	pc.Resource.ExtraData = reconciled
	return pc.Store.SetExtraData(ctx, pc.Resource.ID, reconciled)
}

func resourceIdentifier(pc *runner.PhaseContext) string {
	if gen := pc.Adapter.GenerateID(pc.Resource.ExtraData); gen != "" {
		return gen
	}
	return string(pc.Resource.Slug)
}

// runCheckpointed consults the checkpoint cache before invoking fn,
// and stores fn's result afterward (spec.md §4.3). DESIGN.md's Open
// Question decision iii: on a cache miss, before re-invoking fn it
// consults the resource's event log for a prior event of type step
// (the checkpoint step names are chosen to equal their corresponding
// addrs.EventType, e.g. "create_resource"/EventCreateResource) already
// recorded for this transition — a worker restart that lost the Redis
// entry but already performed the side effect once must not repeat it.
// Only a true miss on both the cache and the event log re-invokes fn.
func runCheckpointed(ctx context.Context, pc *runner.PhaseContext, step string, fn func() (checkpoint.Result, error)) (checkpoint.Result, error) {
	if cached, ok, err := pc.Checkpoint.Get(ctx, pc.Transition.ID, step); err == nil && ok {
		return *cached, nil
	}
	if recorded, ok, err := priorSuccessFromEventLog(ctx, pc, step); err == nil && ok {
		_ = pc.Checkpoint.Put(ctx, pc.Transition.ID, step, recorded)
		return recorded, nil
	}
	result, err := fn()
	if err != nil {
		return checkpoint.Result{}, err
	}
	_ = pc.Checkpoint.Put(ctx, pc.Transition.ID, step, result)
	return result, nil
}

// priorSuccessFromEventLog scans the resource's event history for an
// event of type step already recorded against this transition,
// reconstructing the checkpoint.Result that would have been cached had
// the side effect's Put survived. A miss (ok == false) is not an
// error; it means the step genuinely hasn't run yet.
func priorSuccessFromEventLog(ctx context.Context, pc *runner.PhaseContext, step string) (checkpoint.Result, bool, error) {
	events, err := pc.Store.ResourceEvents(ctx, string(pc.Resource.ID))
	if err != nil {
		return checkpoint.Result{}, false, err
	}
	target := addrs.EventType(step)
	for _, e := range events {
		if e.TransitionID == pc.Transition.ID && e.Type == target {
			return checkpoint.Result{OK: true, Response: e.ExtraInfo}, true, nil
		}
	}
	return checkpoint.Result{}, false, nil
}
