// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// openTestStore requires a live Postgres reachable at
// RECONCILER_PG_TEST_DSN with the schema already applied (or applies
// it itself); skipped otherwise, since this package has no in-memory
// substitute for database/sql + github.com/lib/pq.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("RECONCILER_PG_TEST_DSN")
	if dsn == "" {
		t.Skip("RECONCILER_PG_TEST_DSN not set, skipping Postgres integration test")
	}
	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return s
}

func TestCreateAndGetResource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := NewResourceID()
	r := &Resource{
		ID:           id,
		Slug:         "test-net",
		Kind:         "vpc_network",
		Project:      "proj-1",
		DesiredState: addrs.DesiredHealthy,
		Labels:       map[string]string{"env": "test"},
		ExtraData:    json.RawMessage(`{"foo":"bar"}`),
	}
	if err := s.CreateResource(ctx, r); err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	got, err := s.GetResource(ctx, id)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if got.Slug != r.Slug || got.Kind != r.Kind || got.State != addrs.StateNewborn {
		t.Fatalf("unexpected resource: %+v", got)
	}
	if got.Labels["env"] != "test" {
		t.Fatalf("labels not round-tripped: %+v", got.Labels)
	}

	byRef, err := s.GetResourceByRef(ctx, addrs.Ref{Slug: r.Slug, Kind: r.Kind, Project: r.Project})
	if err != nil {
		t.Fatalf("GetResourceByRef: %v", err)
	}
	if byRef.ID != id {
		t.Fatalf("GetResourceByRef returned wrong id: %s", byRef.ID)
	}
}

func TestCreateTransitionRejectsDuplicateNonTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rid := NewResourceID()
	if err := s.CreateResource(ctx, &Resource{
		ID: rid, Slug: "dup-test", Kind: "vpc_network", Project: "proj-1",
		DesiredState: addrs.DesiredHealthy, ExtraData: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("CreateResource: %v", err)
	}

	first := &Transition{ID: NewTransitionID(), ResourceID: rid, Phase: addrs.PhaseEnsureExists}
	if err := s.CreateTransition(ctx, first); err != nil {
		t.Fatalf("CreateTransition (first): %v", err)
	}

	second := &Transition{ID: NewTransitionID(), ResourceID: rid, Phase: addrs.PhaseEnsureExists}
	if err := s.CreateTransition(ctx, second); err != ErrTransitionAlreadyPending {
		t.Fatalf("CreateTransition (second) = %v, want ErrTransitionAlreadyPending", err)
	}

	if err := s.SetTransitionStatus(ctx, first.ID, addrs.StatusSucceeded, ""); err != nil {
		t.Fatalf("SetTransitionStatus: %v", err)
	}

	third := &Transition{ID: NewTransitionID(), ResourceID: rid, Phase: addrs.PhaseEnsureExists}
	if err := s.CreateTransition(ctx, third); err != nil {
		t.Fatalf("CreateTransition (after prior terminal): %v", err)
	}
}

func TestDependencyEdgesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	network := NewResourceID()
	subnet := NewResourceID()
	if err := s.CreateResource(ctx, &Resource{
		ID: network, Slug: "net-a", Kind: "vpc_network", Project: "proj-1",
		DesiredState: addrs.DesiredHealthy, ExtraData: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("CreateResource(network): %v", err)
	}
	if err := s.CreateResource(ctx, &Resource{
		ID: subnet, Slug: "subnet-a", Kind: "subnet", Project: "proj-1",
		DesiredState: addrs.DesiredHealthy, ExtraData: json.RawMessage("{}"),
	}); err != nil {
		t.Fatalf("CreateResource(subnet): %v", err)
	}
	if err := s.AddDependency(ctx, subnet, network, "network_id"); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	forward, err := s.ForwardDependencies(ctx, subnet)
	if err != nil {
		t.Fatalf("ForwardDependencies: %v", err)
	}
	if len(forward) != 1 || forward[0].ID != network {
		t.Fatalf("unexpected forward dependencies: %+v", forward)
	}

	reverse, err := s.ReverseDependencies(ctx, network)
	if err != nil {
		t.Fatalf("ReverseDependencies: %v", err)
	}
	if len(reverse) != 1 || reverse[0].ID != subnet {
		t.Fatalf("unexpected reverse dependencies: %+v", reverse)
	}
}

func TestAdvisoryLockMutualExclusion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lock, acquired, err := s.TryAcquireDaemonLock(ctx, "test_lock")
	if err != nil {
		t.Fatalf("TryAcquireDaemonLock: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquisition to succeed")
	}
	defer lock.Release(ctx)

	_, acquiredAgain, err := s.TryAcquireDaemonLock(ctx, "test_lock")
	if err != nil {
		t.Fatalf("TryAcquireDaemonLock (second): %v", err)
	}
	if acquiredAgain {
		t.Fatal("expected second acquisition on the same connection pool to fail while held")
	}
}
