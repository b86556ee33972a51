// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"context"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/runner"
)

// EnsureForwardDependenciesDeleted implements spec.md §4.7's
// ensure_forward_dependencies_deleted phase: it gates this resource's
// own deletion on every resource that depends on it having already
// reached state=deleted (the reverse of ensure_dependencies_ready's
// creation-order gate).
func EnsureForwardDependenciesDeleted(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error) {
	dependents, err := pc.Store.ReverseDependencies(ctx, pc.Resource.ID)
	if err != nil {
		return nil, err
	}

	for _, dependent := range dependents {
		if dependent.State == addrs.StateDeleted {
			continue
		}
		if dependent.State == addrs.StateDeletionTerminated {
			return nil, &runner.TerminalFailure{EventType: addrs.EventDeletionTerminated}
		}
		return nil, &runner.RetryRequest{EventType: addrs.EventDependencyDeletionPend}
	}

	return &runner.NextPhase{Phase: addrs.PhaseEnsureDeleted}, nil
}
