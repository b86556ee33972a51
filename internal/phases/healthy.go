// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/runner"
	"github.com/resourceforge/reconciler/internal/store"
)

// recoverAttemptIndex is spec.md §4.7's "if attempt index ≥ 2,
// re-run check_exists and exists_hook" threshold.
const recoverAttemptIndex = 2

// EnsureHealthy implements spec.md §4.7's ensure_healthy phase.
func EnsureHealthy(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error) {
	if pc.AttemptIndex >= recoverAttemptIndex {
		if err := recheckExists(ctx, pc); err != nil {
			return nil, &runner.RetryRequest{EventType: addrs.EventHealthCheckFailed}
		}
	}

	checks := pc.Adapter.HealthChecks()
	if len(checks) == 0 {
		// "a single existence check stands in" (spec.md §4.7).
		if err := recheckExists(ctx, pc); err != nil {
			return nil, &runner.RetryRequest{
				EventType: addrs.EventHealthCheckFailed,
				ExhaustionSideEffect: &runner.SideEffect{
					EventType: addrs.EventHealthChecksTerminated,
				},
			}
		}
	} else {
		list, err := pc.Adapter.List(ctx)
		if err != nil {
			return nil, &runner.RetryRequest{EventType: addrs.EventHealthCheckFailed}
		}
		resp, found := findByID(list, pc.Adapter.ExtractFromListResponse, resourceIdentifier(pc))
		if !found {
			return nil, &runner.RetryRequest{EventType: addrs.EventHealthCheckFailed}
		}
		for _, check := range checks {
			passed, terminal, err := check.Run(ctx, resp)
			if err != nil {
				return nil, &runner.RetryRequest{EventType: addrs.EventHealthCheckFailed}
			}
			if !passed {
				if terminal {
					return nil, &runner.TerminalFailure{EventType: addrs.EventHealthChecksTerminated}
				}
				return nil, &runner.RetryRequest{
					EventType: addrs.EventHealthCheckFailed,
					ExhaustionSideEffect: &runner.SideEffect{
						EventType: addrs.EventHealthChecksTerminated,
					},
				}
			}
		}
	}

	if _, err := emitResourceEvent(ctx, pc, addrs.EventHealthChecksSucceeded, "", nil); err != nil {
		return nil, err
	}
	children, err := pc.Adapter.HealthyHook(ctx, pc.Resource.Slug, pc.Resource.ExtraData)
	if err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventHealthCheckFailed}
	}
	if err := createChildResources(ctx, pc, children); err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventHealthCheckFailed}
	}
	return nil, nil
}

// createChildResources persists the derived resources a HealthyHook
// returned (spec.md §4.1, "may spawn derived child resources", e.g. a
// VPC network's auto-created default subnetwork), skipping any child
// already tracked under the same (kind, slug, project). Each child is
// independent, so a failure creating one doesn't stop the others; all
// failures are aggregated into a single error via go-multierror.
func createChildResources(ctx context.Context, pc *runner.PhaseContext, children []adapter.ChildResource) error {
	var result *multierror.Error
	for _, c := range children {
		ref := addrs.Ref{Slug: c.Slug, Kind: c.Kind, Project: pc.Resource.Project}
		if _, err := pc.Store.GetResourceByRef(ctx, ref); err == nil {
			continue
		} else if err != store.ErrNotFound {
			result = multierror.Append(result, err)
			continue
		}

		child := &store.Resource{
			ID:           store.NewResourceID(),
			Slug:         c.Slug,
			Kind:         c.Kind,
			Project:      pc.Resource.Project,
			DesiredState: addrs.DesiredHealthy,
			ExtraData:    c.ExtraData,
		}
		if err := pc.Store.CreateResource(ctx, child); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := pc.Store.AddDependency(ctx, child.ID, pc.Resource.ID, "parent"); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func recheckExists(ctx context.Context, pc *runner.PhaseContext) error {
	list, err := pc.Adapter.List(ctx)
	if err != nil {
		return err
	}
	resp, found := findByID(list, pc.Adapter.ExtractFromListResponse, resourceIdentifier(pc))
	if !found {
		return errNotFound
	}
	return applyExistsHook(ctx, pc, resp)
}

var errNotFound = notFoundErr{}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "resource not found in provider listing" }
