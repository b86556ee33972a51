// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package projector

import (
	"context"
	"encoding/json"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/store"
)

// Store is the persistence surface the projector needs to append
// events and apply the two projector tables. *store.Store satisfies it
// structurally; internal/runner.Store is a superset also satisfying
// it, so a runner.PhaseContext.Store value can be handed straight to
// New without a cast.
type Store interface {
	AppendResourceEvent(ctx context.Context, e *store.ResourceEvent) error
	AppendTransitionEvent(ctx context.Context, e *store.TransitionEvent) error
	SetState(ctx context.Context, id addrs.ResourceID, next addrs.State, causeEventID string) error
	SetExistence(ctx context.Context, id addrs.ResourceID, existence addrs.Existence) error
	SetHealth(ctx context.Context, id addrs.ResourceID, health addrs.Health) error
	SetTransitionStatus(ctx context.Context, id string, next addrs.TransitionStatus, causeEventID string) error
}

// Projector appends events and, in the same call, applies the state
// and transition-status projector tables. This is the only type in
// the repository that calls store.SetState; store.SetTransitionStatus
// is also called by the do_transition command's operator override.
type Projector struct {
	store Store
}

// New wraps s.
func New(s Store) *Projector {
	return &Projector{store: s}
}

// ResourceEventInput is the set of facts a phase handler or the runner
// supplies when recording a resource-facing event.
type ResourceEventInput struct {
	ResourceID   addrs.ResourceID
	TransitionID string
	Phase        addrs.Phase
	Type         addrs.EventType
	Reason       addrs.Reason
	ExtraInfo    json.RawMessage
}

// EmitResourceEvent appends e, then applies the state projector table
// (spec.md §4.4) and the always-update existence/health rules, writing
// through store.SetState/SetExistence/SetHealth as needed. It returns
// the new state if one was applied, or "" if the event didn't match
// any table entry.
func (p *Projector) EmitResourceEvent(ctx context.Context, e ResourceEventInput) (addrs.State, error) {
	id := store.NewEventID()

	nextState, matched := NextState(e.Phase, e.Type, e.Reason)

	row := &store.ResourceEvent{
		ID:           id,
		Type:         e.Type,
		Reason:       e.Reason,
		ExtraInfo:    e.ExtraInfo,
		ResourceID:   e.ResourceID,
		TransitionID: e.TransitionID,
	}
	if matched {
		row.StateDecision = nextState
	}
	if err := p.store.AppendResourceEvent(ctx, row); err != nil {
		return "", err
	}

	if matched {
		if err := p.store.SetState(ctx, e.ResourceID, nextState, id); err != nil {
			return "", err
		}
	}

	if existence, ok := alwaysExistence[e.Type]; ok {
		if err := p.store.SetExistence(ctx, e.ResourceID, existence); err != nil {
			return nextState, err
		}
	}
	if health, ok := alwaysHealth[e.Type]; ok {
		if err := p.store.SetHealth(ctx, e.ResourceID, health); err != nil {
			return nextState, err
		}
	}

	return nextState, nil
}

// TransitionEventInput is the set of facts recorded for a
// transition-facing event.
type TransitionEventInput struct {
	TransitionID string
	Type         addrs.EventType
	Reason       addrs.Reason
	ExtraInfo    json.RawMessage
}

// EmitTransitionEvent appends e, then applies the transition-status
// projector table.
func (p *Projector) EmitTransitionEvent(ctx context.Context, e TransitionEventInput) (addrs.TransitionStatus, error) {
	id := store.NewEventID()

	nextStatus, matched := NextTransitionStatus(e.Type)

	row := &store.TransitionEvent{
		ID:           id,
		Type:         e.Type,
		Reason:       e.Reason,
		ExtraInfo:    e.ExtraInfo,
		TransitionID: e.TransitionID,
	}
	if matched {
		row.StatusDecision = nextStatus
	}
	if err := p.store.AppendTransitionEvent(ctx, row); err != nil {
		return "", err
	}

	if matched {
		if err := p.store.SetTransitionStatus(ctx, e.TransitionID, nextStatus, id); err != nil {
			return "", err
		}
	}
	return nextStatus, nil
}
