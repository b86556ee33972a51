// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"context"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/runner"
)

// UpdateSubroutine is one named ensure_updated subroutine, dispatched
// by transition.update_type (spec.md §4.7: "Dispatches to a named
// subroutine selected by transition.update_type"). DESIGN.md's Open
// Question decision ii: the source repo wires no concrete update
// subroutines, so this registry is the extension point, seeded with
// one illustrative example (relabel) and otherwise empty.
type UpdateSubroutine func(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error)

// updateSubroutines is the update_type -> subroutine registry.
var updateSubroutines = map[string]UpdateSubroutine{
	"relabel": relabel,
}

// EnsureUpdated implements spec.md §4.7's ensure_updated phase.
func EnsureUpdated(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error) {
	sub, ok := updateSubroutines[pc.Transition.UpdateType]
	if !ok {
		return nil, &runner.TerminalFailure{EventType: addrs.EventTerminalFailure}
	}
	return sub(ctx, pc)
}

// relabel is the one illustrative ensure_updated subroutine: it
// re-reads the provider's current listing and reapplies exists_hook,
// a no-op-safe way to resync extra_data after an operator edits
// labels. It never fails terminally; a provider-side read error is
// retried like any other phase body.
func relabel(ctx context.Context, pc *runner.PhaseContext) (*runner.NextPhase, error) {
	if err := recheckExists(ctx, pc); err != nil {
		return nil, &runner.RetryRequest{EventType: addrs.EventRetrying}
	}
	return nil, nil
}
