// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// NewEventID mints an opaque event id.
func NewEventID() string {
	return uuid.NewString()
}

// AppendResourceEvent inserts an append-only ResourceEvent row (spec.md
// §3/§4.4). Events are never updated or deleted; the projector applies
// its tables to each event as it is appended.
func (s *Store) AppendResourceEvent(ctx context.Context, e *ResourceEvent) error {
	extra := e.ExtraInfo
	if extra == nil {
		extra = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_events (id, type, reason, extra_info, resource_id, transition_id, state_decision)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Type, e.Reason, extra, e.ResourceID, nullIfEmpty(e.TransitionID), nullIfEmpty(string(e.StateDecision)))
	return err
}

// AppendTransitionEvent inserts an append-only TransitionEvent row.
func (s *Store) AppendTransitionEvent(ctx context.Context, e *TransitionEvent) error {
	extra := e.ExtraInfo
	if extra == nil {
		extra = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transition_events (id, type, reason, extra_info, transition_id, status_decision)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Type, e.Reason, extra, e.TransitionID, nullIfEmpty(string(e.StatusDecision)))
	return err
}

// ResourceEvents returns the event history for a resource in causal
// order, used to rebuild state on replay and by the checkpoint cache's
// fallback path on a cache miss (spec.md §9, Open Question iii).
func (s *Store) ResourceEvents(ctx context.Context, resourceID string) ([]*ResourceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, COALESCE(reason, ''), extra_info, resource_id,
		       COALESCE(transition_id, ''), COALESCE(state_decision, ''), created_at
		FROM resource_events WHERE resource_id = $1 ORDER BY created_at
	`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ResourceEvent
	for rows.Next() {
		var e ResourceEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Reason, &e.ExtraInfo, &e.ResourceID,
			&e.TransitionID, &e.StateDecision, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// TransitionEvents returns the event history for a transition in
// causal order.
func (s *Store) TransitionEvents(ctx context.Context, transitionID string) ([]*TransitionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, COALESCE(reason, ''), extra_info, transition_id,
		       COALESCE(status_decision, ''), created_at
		FROM transition_events WHERE transition_id = $1 ORDER BY created_at
	`, transitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TransitionEvent
	for rows.Next() {
		var e TransitionEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Reason, &e.ExtraInfo, &e.TransitionID,
			&e.StatusDecision, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
