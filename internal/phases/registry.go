// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/runner"
)

// Registry returns the runner.Registry binding every addrs.Phase to
// its handler in this package.
func Registry() runner.Registry {
	return runner.Registry{
		addrs.PhaseEnsureDependenciesReady:          EnsureDependenciesReady,
		addrs.PhaseEnsureExists:                     EnsureExists,
		addrs.PhaseEnsureHealthy:                    EnsureHealthy,
		addrs.PhaseEnsureUpdated:                    EnsureUpdated,
		addrs.PhaseEnsureForwardDependenciesDeleted: EnsureForwardDependenciesDeleted,
		addrs.PhaseEnsureDeleted:                    EnsureDeleted,
	}
}
