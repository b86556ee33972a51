// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package runner executes one transition attempt: hydrate, dedup,
// invoke the phase handler, and translate its outcome into events
// (spec.md §4.5). It mirrors the teacher's execOperations shape
// (internal/engine/applying), where a single context struct is
// threaded through a fixed sequence of named steps, adapted from a
// plan-apply operation set to a phase-execution one.
package runner

import (
	"encoding/json"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// RetryRequest is a phase handler's signal that the engine should
// schedule another attempt per retry policy (spec.md §4.5, step 4).
// ExhaustionSideEffect, when set, is the event to emit instead if this
// was the final permitted attempt.
type RetryRequest struct {
	EventType            addrs.EventType
	Reason                addrs.Reason
	Info                  json.RawMessage
	ExhaustionSideEffect  *SideEffect
}

func (r *RetryRequest) Error() string { return "retry requested: " + string(r.EventType) }

// SideEffect names an event to emit when a RetryRequest's budget is
// exhausted (spec.md §4.2: "On exhaustion ... a phase-specific
// exhaustion side effect may additionally be emitted").
type SideEffect struct {
	EventType addrs.EventType
	Reason    addrs.Reason
}

// TerminalFailure is a phase handler's signal that no further retries
// should happen (spec.md §4.5, step 4).
type TerminalFailure struct {
	EventType addrs.EventType
	Reason    addrs.Reason
	Info      json.RawMessage
}

func (t *TerminalFailure) Error() string { return "terminal failure: " + string(t.EventType) }

// NextPhase is a phase handler's signal, alongside a successful
// return, that the next phase's transition should be created (spec.md
// §4.5, step 6: "Phase handlers typically enqueue the next phase's
// transition before returning").
type NextPhase struct {
	Phase           addrs.Phase
	UpdateType      string
	ExtraTaskKwargs json.RawMessage
}
