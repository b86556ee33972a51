// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package phases implements the six transition phase handlers (spec.md
// §4.7), one file per phase, following the teacher's
// internal/engine/applying/operations_resource.go shape: one method
// per concern, each a thin adapter call plus event emission.
package phases

import (
	"context"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/runner"
)

// readinessStates is the default set a dependency must reach before a
// dependent's ensure_dependencies_ready phase proceeds (spec.md §4.7:
// "its state ∈ readiness set (default {healthy})").
var readinessStates = map[addrs.State]bool{
	addrs.StateHealthy: true,
}

// EnsureDependenciesReady implements spec.md §4.7's
// ensure_dependencies_ready phase.
func EnsureDependenciesReady(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error) {
	deps, err := pc.Store.ForwardDependencies(ctx, pc.Resource.ID)
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		if _, err := emitResourceEvent(ctx, pc, addrs.EventDependenciesReady, "", nil); err != nil {
			return nil, err
		}
		return &runner.NextPhase{Phase: addrs.PhaseEnsureExists}, nil
	}

	for _, dep := range deps {
		if readinessStates[dep.State] {
			continue
		}
		if dep.State == addrs.StateCreationTerminated {
			return nil, &runner.TerminalFailure{
				EventType: addrs.EventDependencyFailed,
				Reason:    addrs.ReasonNotReady,
			}
		}
		return nil, &runner.RetryRequest{
			EventType: addrs.EventDependenciesPending,
			Reason:    addrs.ReasonNotReady,
		}
	}

	if _, err := emitResourceEvent(ctx, pc, addrs.EventDependenciesReady, "", nil); err != nil {
		return nil, err
	}
	return &runner.NextPhase{Phase: addrs.PhaseEnsureExists}, nil
}
