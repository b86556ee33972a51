// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-hclog"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/checkpoint"
	"github.com/resourceforge/reconciler/internal/store"
)

// Store is the persistence surface the runner and phase handlers need.
// *store.Store satisfies it structurally; tests substitute a fake so
// Runner.Execute and the phase handlers can run without a live
// Postgres (mirroring the teacher's preference for narrow interfaces
// over concrete backend types at package boundaries).
type Store interface {
	GetTransition(ctx context.Context, id string) (*store.Transition, error)
	GetResource(ctx context.Context, id addrs.ResourceID) (*store.Resource, error)
	GetResourceByRef(ctx context.Context, ref addrs.Ref) (*store.Resource, error)
	CreateResource(ctx context.Context, r *store.Resource) error
	AddDependency(ctx context.Context, resourceID, dependsOnID addrs.ResourceID, fieldName string) error
	ForwardDependencies(ctx context.Context, resourceID addrs.ResourceID) ([]*store.Resource, error)
	ReverseDependencies(ctx context.Context, resourceID addrs.ResourceID) ([]*store.Resource, error)
	SetExtraData(ctx context.Context, id addrs.ResourceID, extraData json.RawMessage) error
	ResourceEvents(ctx context.Context, resourceID string) ([]*store.ResourceEvent, error)
	AppendResourceEvent(ctx context.Context, e *store.ResourceEvent) error
	AppendTransitionEvent(ctx context.Context, e *store.TransitionEvent) error
	SetState(ctx context.Context, id addrs.ResourceID, next addrs.State, causeEventID string) error
	SetExistence(ctx context.Context, id addrs.ResourceID, existence addrs.Existence) error
	SetHealth(ctx context.Context, id addrs.ResourceID, health addrs.Health) error
	SetTransitionStatus(ctx context.Context, id string, next addrs.TransitionStatus, causeEventID string) error
	CreateTransition(ctx context.Context, t *store.Transition) error
	RecordAttempt(ctx context.Context, a *store.Attempt) error
	FinishAttempt(ctx context.Context, id string, brokerFailed bool) error
}

// CheckpointCache is the subset of *checkpoint.Cache the runner and
// phase handlers use.
type CheckpointCache interface {
	Get(ctx context.Context, transitionID, step string) (*checkpoint.Result, bool, error)
	Put(ctx context.Context, transitionID, step string, r checkpoint.Result) error
}

// PhaseContext is the hydrated state a phase handler (internal/phases)
// operates on for one attempt: the resource and transition rows, the
// resolved Adapter for the resource's kind, and the shared
// infrastructure (store, checkpoint cache, logger) it needs to emit
// events and perform checkpointed side effects.
type PhaseContext struct {
	Resource     *store.Resource
	Transition   *store.Transition
	AttemptIndex int
	Rescheduled  bool

	Adapter    adapter.Adapter
	Store      Store
	Checkpoint CheckpointCache
	Log        hclog.Logger
}

// PhaseHandler executes one phase body (spec.md §4.7) and returns
// either nil (success; next *NextPhase, if any, describes the
// follow-on transition to create), a *RetryRequest, or a
// *TerminalFailure.
type PhaseHandler func(ctx context.Context, pc *PhaseContext) (*NextPhase, error)

// Registry maps addrs.Phase to its PhaseHandler, resolved by the
// runner before invoking step 4 of spec.md §4.5.
type Registry map[addrs.Phase]PhaseHandler
