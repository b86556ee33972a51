// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// NewTransitionID mints an opaque transition id.
func NewTransitionID() string {
	return uuid.NewString()
}

// CreateTransition inserts a new transition for (resourceID, phase),
// enforcing spec.md §3's invariant that at most one non-terminal
// transition may exist per (resource, phase) at a time. Because
// Postgres can't express "no non-terminal sibling" as a unique index
// over an open status set, the guard is a SELECT ... FOR UPDATE for a
// non-terminal sibling followed by the INSERT in one transaction, the
// same shape
// the teacher's pg backend uses to guard its single-row Lock() (see
// internal/backend/remote-state/pg/client.go). It returns
// ErrTransitionAlreadyPending if a non-terminal sibling already exists.
func (s *Store) CreateTransition(ctx context.Context, t *Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM transitions
		WHERE resource_id = $1 AND phase = $2 AND status NOT IN ('succeeded', 'failed')
		FOR UPDATE
	`, t.ResourceID, t.Phase).Scan(&existing)
	switch err {
	case nil:
		return ErrTransitionAlreadyPending
	case sql.ErrNoRows:
		// fall through, no non-terminal sibling
	default:
		return err
	}

	extra := t.ExtraTaskKwargs
	if extra == nil {
		extra = json.RawMessage("{}")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transitions (id, resource_id, phase, status, update_type, extra_task_kwargs, previous_transition)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.ResourceID, t.Phase, addrs.StatusPending, t.UpdateType, extra, nullIfEmpty(t.PreviousTransition))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ErrTransitionAlreadyPending is returned by CreateTransition when a
// non-terminal transition already exists for (resource, phase).
var ErrTransitionAlreadyPending = &transitionError{"a non-terminal transition already exists for this resource and phase"}

type transitionError struct{ msg string }

func (e *transitionError) Error() string { return e.msg }

// GetTransition fetches a transition by id.
func (s *Store) GetTransition(ctx context.Context, id string) (*Transition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, resource_id, phase, status, COALESCE(status_cause_event_id, ''),
		       COALESCE(update_type, ''), extra_task_kwargs, COALESCE(previous_transition, ''),
		       created_at, updated_at
		FROM transitions WHERE id = $1
	`, id)
	return scanTransition(row)
}

func scanTransition(row *sql.Row) (*Transition, error) {
	var t Transition
	err := row.Scan(&t.ID, &t.ResourceID, &t.Phase, &t.Status, &t.StatusCauseEventID,
		&t.UpdateType, &t.ExtraTaskKwargs, &t.PreviousTransition, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetTransitionStatus is the projector's single write path for a
// transition's status (the transition-status analogue of
// Store.SetState), always pairing the new status with the event that
// caused it.
func (s *Store) SetTransitionStatus(ctx context.Context, id string, next addrs.TransitionStatus, causeEventID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transitions SET status = $2, status_cause_event_id = $3, updated_at = now() WHERE id = $1
	`, id, next, causeEventID)
	return err
}

// PendingTransitions returns up to limit transitions in status,
// oldest first, for the submit_transition_tasks daemon (spec.md §4.8).
func (s *Store) PendingTransitions(ctx context.Context, status addrs.TransitionStatus, limit int) ([]*Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource_id, phase, status, COALESCE(status_cause_event_id, ''),
		       COALESCE(update_type, ''), extra_task_kwargs, COALESCE(previous_transition, ''),
		       created_at, updated_at
		FROM transitions
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.ID, &t.ResourceID, &t.Phase, &t.Status, &t.StatusCauseEventID,
			&t.UpdateType, &t.ExtraTaskKwargs, &t.PreviousTransition, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// RecordAttempt inserts an Attempt row for dedup bookkeeping and the
// defensive broker-failure side channel (spec.md §4.5/§4.6).
func (s *Store) RecordAttempt(ctx context.Context, a *Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, transition_id, index, is_duplicate, rescheduled, started_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, a.ID, a.TransitionID, a.Index, a.IsDuplicate, a.Rescheduled)
	return err
}

// FinishAttempt marks an attempt as finished, optionally flagging it as
// broker-failed. The runner always passes brokerFailed=false, and
// nothing in the repository reads the flag back.
func (s *Store) FinishAttempt(ctx context.Context, id string, brokerFailed bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE attempts SET finished_at = now(), broker_failed = $2 WHERE id = $1
	`, id, brokerFailed)
	return err
}

// AttemptCount returns how many attempts (including duplicates) a
// transition has accumulated. The runner's retry budget check uses the
// task's own attempt index, not this count.
func (s *Store) AttemptCount(ctx context.Context, transitionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM attempts WHERE transition_id = $1`, transitionID).Scan(&n)
	return n, err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
