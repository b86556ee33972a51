// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package store is the relational persistence layer for the entities
// in spec.md §3. It is deliberately thin: every method is a single
// parameterized query or a short read-modify-write guarded by a
// database-level constraint, following the same style as the
// teacher's internal/backend/remote-state/pg/client.go (plain
// database/sql plus github.com/lib/pq, no ORM).
package store

import (
	"encoding/json"
	"time"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// Resource mirrors the Resource entity in spec.md §3.
type Resource struct {
	ID           addrs.ResourceID
	Slug         addrs.Slug
	Kind         addrs.Kind
	Project      string
	DesiredState addrs.DesiredState
	State        addrs.State
	Existence    addrs.Existence
	Health       addrs.Health
	Labels       map[string]string
	ExtraData    json.RawMessage

	CreationResponse json.RawMessage
	ListResponse      json.RawMessage
	GetterResponse    json.RawMessage

	StateCauseEventID string

	ExistenceCheckedAt *time.Time
	HealthCheckedAt    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ResourceDependency mirrors the ResourceDependency entity.
type ResourceDependency struct {
	ResourceID  addrs.ResourceID
	DependsOnID addrs.ResourceID
	FieldName   string
}

// Transition mirrors the Transition entity.
type Transition struct {
	ID                 string
	ResourceID         addrs.ResourceID
	Phase              addrs.Phase
	Status             addrs.TransitionStatus
	StatusCauseEventID string
	UpdateType         string
	ExtraTaskKwargs    json.RawMessage
	PreviousTransition string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ResourceEvent mirrors the ResourceEvent entity.
type ResourceEvent struct {
	ID             string
	Type           addrs.EventType
	Reason         addrs.Reason
	ExtraInfo      json.RawMessage
	ResourceID     addrs.ResourceID
	TransitionID    string
	StateDecision  addrs.State
	CreatedAt      time.Time
}

// TransitionEvent mirrors the TransitionEvent entity.
type TransitionEvent struct {
	ID              string
	Type            addrs.EventType
	Reason          addrs.Reason
	ExtraInfo       json.RawMessage
	TransitionID    string
	StatusDecision  addrs.TransitionStatus
	CreatedAt       time.Time
}

// Attempt records one execution of a transition (spec.md glossary:
// "Attempt"), used by the runner for dedup and by the §4.6 defensive
// side-channel that watches broker-reported attempt failures.
type Attempt struct {
	ID           string
	TransitionID string
	Index        int
	IsDuplicate  bool
	Rescheduled  bool
	StartedAt    time.Time
	FinishedAt   *time.Time
	BrokerFailed bool
}
