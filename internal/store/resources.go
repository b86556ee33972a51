// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// ErrNotFound is returned by Get-style methods when no row matches.
var ErrNotFound = errors.New("store: not found")

// NewResourceID mints a 16-character opaque id, the shape spec.md §3
// requires ("stable 16-char opaque id").
func NewResourceID() addrs.ResourceID {
	return addrs.ResourceID(uuid.NewString()[:16])
}

// CreateResource inserts a newborn resource row. Slug/Kind/Project
// uniqueness is enforced by the schema's UNIQUE constraint; callers
// (the ingestion path) should treat a unique-violation error as
// "already declared" rather than retry-worthy.
func (s *Store) CreateResource(ctx context.Context, r *Resource) error {
	labels, err := json.Marshal(r.Labels)
	if err != nil {
		return err
	}
	extraData := r.ExtraData
	if extraData == nil {
		extraData = json.RawMessage("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resources (id, slug, kind, project, desired_state, state, existence, health, labels, extra_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.Slug, r.Kind, r.Project, r.DesiredState, addrs.StateNewborn, addrs.ExistenceUnknown, addrs.HealthUnknown, labels, extraData)
	return err
}

// GetResource fetches a resource by id.
func (s *Store) GetResource(ctx context.Context, id addrs.ResourceID) (*Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, kind, project, desired_state, state, existence, health,
		       labels, extra_data, creation_response, list_response, getter_response,
		       COALESCE(state_cause_event_id, ''), existence_checked_at, health_checked_at,
		       created_at, updated_at
		FROM resources WHERE id = $1
	`, id)
	return scanResource(row)
}

// GetResourceByRef fetches a resource by its ingestion-time natural key.
func (s *Store) GetResourceByRef(ctx context.Context, ref addrs.Ref) (*Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, kind, project, desired_state, state, existence, health,
		       labels, extra_data, creation_response, list_response, getter_response,
		       COALESCE(state_cause_event_id, ''), existence_checked_at, health_checked_at,
		       created_at, updated_at
		FROM resources WHERE slug = $1 AND kind = $2 AND project = $3
	`, ref.Slug, ref.Kind, ref.Project)
	return scanResource(row)
}

func scanResource(row *sql.Row) (*Resource, error) {
	var r Resource
	var labels []byte
	err := row.Scan(&r.ID, &r.Slug, &r.Kind, &r.Project, &r.DesiredState, &r.State,
		&r.Existence, &r.Health, &labels, &r.ExtraData, &r.CreationResponse,
		&r.ListResponse, &r.GetterResponse, &r.StateCauseEventID,
		&r.ExistenceCheckedAt, &r.HealthCheckedAt, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(labels) > 0 {
		if err := unmarshalLabels(labels, &r.Labels); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// SetDesiredState sets the operator-declared target, e.g. from
// `hcl_apply`.
func (s *Store) SetDesiredState(ctx context.Context, id addrs.ResourceID, desired addrs.DesiredState) error {
	_, err := s.db.ExecContext(ctx, `UPDATE resources SET desired_state = $2, updated_at = now() WHERE id = $1`, id, desired)
	return err
}

// SetState performs the projector's single write path for a
// resource's state (spec.md §9, Open Question i): every write of
// state must also set state_cause in the same statement. This is the
// ONLY method in the repository permitted to change resources.state;
// see internal/projector.
func (s *Store) SetState(ctx context.Context, id addrs.ResourceID, next addrs.State, causeEventID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE resources SET state = $2, state_cause_event_id = $3, updated_at = now() WHERE id = $1
	`, id, next, causeEventID)
	return err
}

// SetExistence records a last-observed-existence fact independently
// of state (spec.md §4.4: "certain events always update
// existence/health regardless of state").
func (s *Store) SetExistence(ctx context.Context, id addrs.ResourceID, existence addrs.Existence) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE resources SET existence = $2, existence_checked_at = now(), updated_at = now() WHERE id = $1
	`, id, existence)
	return err
}

// SetHealth records a last-observed-health fact independently of state.
func (s *Store) SetHealth(ctx context.Context, id addrs.ResourceID, health addrs.Health) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE resources SET health = $2, health_checked_at = now(), updated_at = now() WHERE id = $1
	`, id, health)
	return err
}

// SetExtraData overwrites a resource's extra_data, used after an
// adapter's exists_hook reconciles provider-assigned identifiers into
// the canonical extra_data (spec.md §4.1, "hooks").
func (s *Store) SetExtraData(ctx context.Context, id addrs.ResourceID, extraData json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `UPDATE resources SET extra_data = $2, updated_at = now() WHERE id = $1`, id, extraData)
	return err
}

// SetCreationResponse persists the adapter's create() response so a
// later ensure_exists retry, or a crash-restart, can recover the
// provider-assigned identifier without re-creating (spec.md §8,
// property 6).
func (s *Store) SetCreationResponse(ctx context.Context, id addrs.ResourceID, resp json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `UPDATE resources SET creation_response = $2, updated_at = now() WHERE id = $1`, id, resp)
	return err
}

// SetListResponse persists the adapter's most recent list() snapshot
// entry matching this resource.
func (s *Store) SetListResponse(ctx context.Context, id addrs.ResourceID, resp json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `UPDATE resources SET list_response = $2, updated_at = now() WHERE id = $1`, id, resp)
	return err
}

// ResourcesNeedingTransition returns up to limit resources whose
// state has not yet reached their desired_state and which are not in
// a terminal sink, for the create_missing_transitions daemon
// (spec.md §4.8). terminalState names the terminal state to skip
// (e.g. "creation_terminated" when desired=healthy).
func (s *Store) ResourcesNeedingTransition(ctx context.Context, desired addrs.DesiredState, goalState addrs.State, terminalState addrs.State, limit int) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.slug, r.kind, r.project, r.desired_state, r.state, r.existence, r.health,
		       r.labels, r.extra_data, r.creation_response, r.list_response, r.getter_response,
		       COALESCE(r.state_cause_event_id, ''), r.existence_checked_at, r.health_checked_at,
		       r.created_at, r.updated_at
		FROM resources r
		WHERE r.desired_state = $1
		  AND r.state != $2
		  AND r.state != $3
		  AND NOT EXISTS (
		      SELECT 1 FROM transitions t
		      WHERE t.resource_id = r.id AND t.status NOT IN ('succeeded', 'failed')
		  )
		ORDER BY r.updated_at
		LIMIT $4
	`, desired, goalState, terminalState, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Resource
	for rows.Next() {
		var r Resource
		var labels []byte
		if err := rows.Scan(&r.ID, &r.Slug, &r.Kind, &r.Project, &r.DesiredState, &r.State,
			&r.Existence, &r.Health, &labels, &r.ExtraData, &r.CreationResponse,
			&r.ListResponse, &r.GetterResponse, &r.StateCauseEventID,
			&r.ExistenceCheckedAt, &r.HealthCheckedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &r.Labels); err != nil {
				return nil, err
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func unmarshalLabels(data []byte, out *map[string]string) error {
	return json.Unmarshal(data, out)
}
