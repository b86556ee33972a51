// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"context"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/checkpoint"
	"github.com/resourceforge/reconciler/internal/runner"
)

const deleteCheckpointStep = "delete_resource"

// EnsureDeleted implements spec.md §4.7's ensure_deleted phase.
func EnsureDeleted(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error) {
	id := resourceIdentifier(pc)

	list, err := pc.Adapter.List(ctx)
	if err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
	}
	if _, found := findByID(list, pc.Adapter.ExtractFromListResponse, id); !found {
		if _, err := emitResourceEvent(ctx, pc, addrs.EventResourceNotFound, addrs.ReasonAbsentBeforeDeletion, nil); err != nil {
			return nil, err
		}
		if err := pc.Adapter.DeletedHook(ctx, pc.Resource.ExtraData); err != nil {
			return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
		}
		return nil, nil
	}

	result, err := runCheckpointed(ctx, pc, deleteCheckpointStep, func() (checkpoint.Result, error) {
		ok, _, err := pc.Adapter.Delete(ctx, id)
		if err != nil {
			return checkpoint.Result{}, err
		}
		if ok {
			if _, err := emitResourceEvent(ctx, pc, addrs.EventDeleteResource, "", nil); err != nil {
				return checkpoint.Result{}, err
			}
		}
		return checkpoint.Result{OK: ok}, nil
	})
	if err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
	}
	if !result.OK {
		return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
	}

	if pc.AttemptIndex >= fetchRetries {
		return nil, &runner.RetryRequest{
			EventType: addrs.EventNotYetAbsent,
			ExhaustionSideEffect: &runner.SideEffect{
				EventType: addrs.EventDeletionTerminated,
				Reason:    addrs.ReasonRetriesExhausted,
			},
		}
	}

	list, err = pc.Adapter.List(ctx)
	if err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventNotYetAbsent}
	}
	if _, found := findByID(list, pc.Adapter.ExtractFromListResponse, id); found {
		return nil, &runner.RetryRequest{EventType: addrs.EventNotYetAbsent}
	}

	if _, err := emitResourceEvent(ctx, pc, addrs.EventResourceNotFound, addrs.ReasonAbsentAfterDeletion, nil); err != nil {
		return nil, err
	}
	return nil, nil
}
