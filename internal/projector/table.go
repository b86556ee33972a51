// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package projector is the single writer of Resource.State and
// Transition.Status (DESIGN.md's Open Question decision i): every
// event append goes through here, and nowhere else in the repository
// calls store.SetState; the one other caller of
// store.SetTransitionStatus is the do_transition command's operator
// override. The lookup tables below are built once and consulted per
// event, the same "build the schema table once, look it up per
// decode" shape the config package's hcl.BodySchema values use.
package projector

import "github.com/resourceforge/reconciler/internal/addrs"

// resourceKey is the most specific lookup key the state table
// supports: (phase, event_type, reason).
type resourceKey struct {
	Phase  addrs.Phase
	Event  addrs.EventType
	Reason addrs.Reason
}

// resourceStateTable implements spec.md §4.4's three-level specificity
// lookup. byPhaseEventReason is tried first, then byPhaseEvent, then
// byEvent; an event matching none of the three leaves state unchanged.
var resourceStateTable = struct {
	byPhaseEventReason map[resourceKey]addrs.State
	byPhaseEvent       map[struct {
		Phase addrs.Phase
		Event addrs.EventType
	}]addrs.State
	byEvent map[addrs.EventType]addrs.State
}{
	byPhaseEventReason: map[resourceKey]addrs.State{
		{addrs.PhaseEnsureDependenciesReady, addrs.EventDependencyFailed, addrs.ReasonNotReady}: addrs.StateCreationTerminated,
		{addrs.PhaseEnsureExists, addrs.EventCreationRequestSucceeded, addrs.ReasonFoundAfterCreation}: addrs.StateExists,
		{addrs.PhaseEnsureDeleted, addrs.EventResourceNotFound, addrs.ReasonAbsentBeforeDeletion}: addrs.StateDeleted,
		{addrs.PhaseEnsureDeleted, addrs.EventResourceNotFound, addrs.ReasonAbsentAfterDeletion}: addrs.StateDeleted,
	},
	byPhaseEvent: map[struct {
		Phase addrs.Phase
		Event addrs.EventType
	}]addrs.State{
		{addrs.PhaseEnsureDependenciesReady, addrs.EventDependenciesReady}:   addrs.StateDependenciesPending,
		{addrs.PhaseEnsureDependenciesReady, addrs.EventDependenciesPending}: addrs.StateDependenciesPending,
		{addrs.PhaseEnsureExists, addrs.EventResourceFound}:                 addrs.StateExists,
		{addrs.PhaseEnsureExists, addrs.EventCreating}:                      addrs.StateDeclared,
		{addrs.PhaseEnsureHealthy, addrs.EventHealthChecksSucceeded}:        addrs.StateHealthy,
		{addrs.PhaseEnsureHealthy, addrs.EventHealthChecksTerminated}:       addrs.StateCreationTerminated,
		{addrs.PhaseEnsureForwardDependenciesDeleted, addrs.EventDeletionTerminated}: addrs.StateDeletionTerminated,
		{addrs.PhaseEnsureDeleted, addrs.EventDeletionTerminated}:           addrs.StateDeletionTerminated,
	},
	byEvent: map[addrs.EventType]addrs.State{
		addrs.EventTerminalFailure: addrs.StateCreationTerminated,
	},
}

// NextState implements the three-level specificity lookup. ok reports
// whether any entry matched; callers must leave state unchanged when
// ok is false (spec.md §4.4: "unmatched events do not change state").
func NextState(phase addrs.Phase, event addrs.EventType, reason addrs.Reason) (addrs.State, bool) {
	if reason != "" {
		if s, ok := resourceStateTable.byPhaseEventReason[resourceKey{phase, event, reason}]; ok {
			return s, true
		}
	}
	key := struct {
		Phase addrs.Phase
		Event addrs.EventType
	}{phase, event}
	if s, ok := resourceStateTable.byPhaseEvent[key]; ok {
		return s, true
	}
	if s, ok := resourceStateTable.byEvent[event]; ok {
		return s, true
	}
	return "", false
}

// alwaysExistence and alwaysHealth implement spec.md §4.4's
// "certain events always update existence/health regardless of
// state" rule, independent of NextState matching.
var alwaysExistence = map[addrs.EventType]addrs.Existence{
	addrs.EventResourceFound:         addrs.ExistenceExists,
	addrs.EventCreationRequestSucceeded: addrs.ExistenceExists,
	addrs.EventHealthChecksSucceeded: addrs.ExistenceExists,
	addrs.EventResourceNotFound:      addrs.ExistenceDoesntExist,
}

var alwaysHealth = map[addrs.EventType]addrs.Health{
	addrs.EventHealthChecksSucceeded:  addrs.HealthHealthy,
	addrs.EventHealthCheckFailed:      addrs.HealthUnhealthy,
	addrs.EventHealthChecksTerminated: addrs.HealthUnhealthy,
}

// transitionStatusTable is spec.md §4.4's "smaller table":
// sent_to_broker->sent_to_broker, started->in_progress,
// succeeded->succeeded, terminal_failure->failed.
var transitionStatusTable = map[addrs.EventType]addrs.TransitionStatus{
	addrs.EventSentToBroker:    addrs.StatusSentToBroker,
	addrs.EventStarted:         addrs.StatusInProgress,
	addrs.EventSucceeded:       addrs.StatusSucceeded,
	addrs.EventTerminalFailure: addrs.StatusFailed,
}

// NextTransitionStatus looks up the transition-status projector table.
func NextTransitionStatus(event addrs.EventType) (addrs.TransitionStatus, bool) {
	s, ok := transitionStatusTable[event]
	return s, ok
}
