// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// AddDependency records one forward dependency edge discovered at
// ingestion (spec.md §3, ResourceDependency). The UNIQUE constraint on
// (resource_id, depends_on_id, field_name) makes this call idempotent.
func (s *Store) AddDependency(ctx context.Context, resourceID, dependsOnID addrs.ResourceID, fieldName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_dependencies (resource_id, depends_on_id, field_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource_id, depends_on_id, field_name) DO NOTHING
	`, resourceID, dependsOnID, fieldName)
	return err
}

// ForwardDependencies returns the resources that resourceID declares
// a dependency on, used by ensure_dependencies_ready (spec.md §4.7).
func (s *Store) ForwardDependencies(ctx context.Context, resourceID addrs.ResourceID) ([]*Resource, error) {
	return s.queryDependencyResources(ctx, `
		SELECT r.id, r.slug, r.kind, r.project, r.desired_state, r.state, r.existence, r.health,
		       r.labels, r.extra_data, r.creation_response, r.list_response, r.getter_response,
		       COALESCE(r.state_cause_event_id, ''), r.existence_checked_at, r.health_checked_at,
		       r.created_at, r.updated_at
		FROM resource_dependencies d
		JOIN resources r ON r.id = d.depends_on_id
		WHERE d.resource_id = $1
	`, resourceID)
}

// ReverseDependencies returns the resources that declare a dependency
// on resourceID, used by ensure_forward_dependencies_deleted (spec.md
// §4.7: "reverse: pre-deletion gating").
func (s *Store) ReverseDependencies(ctx context.Context, resourceID addrs.ResourceID) ([]*Resource, error) {
	return s.queryDependencyResources(ctx, `
		SELECT r.id, r.slug, r.kind, r.project, r.desired_state, r.state, r.existence, r.health,
		       r.labels, r.extra_data, r.creation_response, r.list_response, r.getter_response,
		       COALESCE(r.state_cause_event_id, ''), r.existence_checked_at, r.health_checked_at,
		       r.created_at, r.updated_at
		FROM resource_dependencies d
		JOIN resources r ON r.id = d.resource_id
		WHERE d.depends_on_id = $1
	`, resourceID)
}

func (s *Store) queryDependencyResources(ctx context.Context, query string, id addrs.ResourceID) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
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
			if err := unmarshalLabels(labels, &r.Labels); err != nil {
				return nil, err
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
