// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package daemon

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/store"
)

func TestInitialPhaseDeletedGoalAlwaysStartsAtForwardDependencyTeardown(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rid := store.NewResourceID()
	if err := s.CreateResource(ctx, &store.Resource{
		ID: rid, Slug: "initial-phase-deleted", Kind: "vpc_network", Project: "proj-1",
		DesiredState: addrs.DesiredDeleted, ExtraData: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	got, err := initialPhase(ctx, s, &store.Resource{ID: rid}, addrs.DesiredDeleted)
	if err != nil {
		t.Fatalf("initialPhase: %v", err)
	}
	if got != addrs.PhaseEnsureForwardDependenciesDeleted {
		t.Fatalf("initialPhase(deleted) = %s, want %s", got, addrs.PhaseEnsureForwardDependenciesDeleted)
	}
}

func TestInitialPhaseLeafResourceStartsAtEnsureExists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rid := store.NewResourceID()
	if err := s.CreateResource(ctx, &store.Resource{
		ID: rid, Slug: "initial-phase-leaf", Kind: "vpc_network", Project: "proj-1",
		DesiredState: addrs.DesiredHealthy, ExtraData: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	got, err := initialPhase(ctx, s, &store.Resource{ID: rid}, addrs.DesiredHealthy)
	if err != nil {
		t.Fatalf("initialPhase: %v", err)
	}
	if got != addrs.PhaseEnsureExists {
		t.Fatalf("initialPhase(leaf) = %s, want %s", got, addrs.PhaseEnsureExists)
	}
}

func TestInitialPhaseResourceWithDependenciesStartsAtDependencyReadiness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	depID := store.NewResourceID()
	if err := s.CreateResource(ctx, &store.Resource{
		ID: depID, Slug: "initial-phase-dep", Kind: "vpc_network", Project: "proj-1",
		DesiredState: addrs.DesiredHealthy, ExtraData: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("CreateResource (dependency): %v", err)
	}

	rid := store.NewResourceID()
	if err := s.CreateResource(ctx, &store.Resource{
		ID: rid, Slug: "initial-phase-dependent", Kind: "subnet", Project: "proj-1",
		DesiredState: addrs.DesiredHealthy, ExtraData: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("CreateResource: %v", err)
	}
	if err := s.AddDependency(ctx, rid, depID, "network"); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	got, err := initialPhase(ctx, s, &store.Resource{ID: rid}, addrs.DesiredHealthy)
	if err != nil {
		t.Fatalf("initialPhase: %v", err)
	}
	if got != addrs.PhaseEnsureDependenciesReady {
		t.Fatalf("initialPhase(non-leaf) = %s, want %s", got, addrs.PhaseEnsureDependenciesReady)
	}
}
