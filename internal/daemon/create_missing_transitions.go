// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package daemon runs the two periodic loops spec.md §4.8 describes,
// each a best-effort singleton coordinated by a Postgres advisory
// lock (internal/store.TryAcquireDaemonLock), the same
// pg_try_advisory_lock idiom the teacher's pg backend uses for its own
// single-writer coordination.
package daemon

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/store"
)

// batchSize bounds each tick's row scan (spec.md §4.8: "bounded batch
// size (≈500 rows)").
const batchSize = 500

// createMissingTransitionsPeriod is spec.md §4.8's "~10 s period".
const createMissingTransitionsPeriod = 10 * time.Second

const lockNameCreateMissingTransitions = "create_missing_transitions"

// CreateMissingTransitions runs the create_missing_transitions loop
// until ctx is cancelled.
func CreateMissingTransitions(ctx context.Context, s *store.Store, adapters *adapter.Registry, log hclog.Logger) {
	ticker := time.NewTicker(createMissingTransitionsPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCreateMissingTransitionsTick(ctx, s, adapters, log)
		}
	}
}

func runCreateMissingTransitionsTick(ctx context.Context, s *store.Store, adapters *adapter.Registry, log hclog.Logger) {
	lock, acquired, err := s.TryAcquireDaemonLock(ctx, lockNameCreateMissingTransitions)
	if err != nil {
		log.Error("advisory lock attempt failed", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer lock.Release(ctx)

	if err := createTransitionsFor(ctx, s, adapters, addrs.DesiredHealthy, addrs.StateHealthy, addrs.StateCreationTerminated, log); err != nil {
		log.Error("create_missing_transitions: healthy pass failed", "error", err)
	}
	if err := createTransitionsFor(ctx, s, adapters, addrs.DesiredDeleted, addrs.StateDeleted, addrs.StateDeletionTerminated, log); err != nil {
		log.Error("create_missing_transitions: deleted pass failed", "error", err)
	}
}

func createTransitionsFor(ctx context.Context, s *store.Store, adapters *adapter.Registry, desired addrs.DesiredState, goal, terminal addrs.State, log hclog.Logger) error {
	resources, err := s.ResourcesNeedingTransition(ctx, desired, goal, terminal, batchSize)
	if err != nil {
		return err
	}
	for _, r := range resources {
		phase, err := initialPhase(ctx, s, r, desired)
		if err != nil {
			log.Error("failed to resolve initial phase", "resource_id", r.ID, "error", err)
			continue
		}
		t := &store.Transition{
			ID:         store.NewTransitionID(),
			ResourceID: r.ID,
			Phase:      phase,
			Status:     addrs.StatusPending,
		}
		if err := s.CreateTransition(ctx, t); err != nil {
			if err == store.ErrTransitionAlreadyPending {
				continue
			}
			log.Error("failed to create transition", "resource_id", r.ID, "phase", phase, "error", err)
			continue
		}
	}
	return nil
}

// initialPhase implements spec.md §4.8's "adapter.initial_phase()
// (either ensure_dependencies_ready or, for leaves, ensure_exists)"
// for the healthy goal, and ensure_forward_dependencies_deleted for
// the deleted goal. A resource is a leaf when it declares no forward
// dependency edges, in which case ensure_dependencies_ready would have
// nothing to wait on and is skipped.
func initialPhase(ctx context.Context, s *store.Store, r *store.Resource, desired addrs.DesiredState) (addrs.Phase, error) {
	if desired == addrs.DesiredDeleted {
		return addrs.PhaseEnsureForwardDependenciesDeleted, nil
	}
	deps, err := s.ForwardDependencies(ctx, r.ID)
	if err != nil {
		return "", err
	}
	if len(deps) == 0 {
		return addrs.PhaseEnsureExists, nil
	}
	return addrs.PhaseEnsureDependenciesReady, nil
}
