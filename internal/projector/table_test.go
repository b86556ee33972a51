// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package projector

import (
	"testing"

	"github.com/resourceforge/reconciler/internal/addrs"
)

func TestNextStatePrefersMostSpecificMatch(t *testing.T) {
	state, ok := NextState(addrs.PhaseEnsureExists, addrs.EventCreationRequestSucceeded, addrs.ReasonFoundAfterCreation)
	if !ok || state != addrs.StateExists {
		t.Fatalf("got (%v, %v), want (exists, true)", state, ok)
	}
}

func TestNextStateFallsBackToPhaseEvent(t *testing.T) {
	state, ok := NextState(addrs.PhaseEnsureExists, addrs.EventResourceFound, "")
	if !ok || state != addrs.StateExists {
		t.Fatalf("got (%v, %v), want (exists, true)", state, ok)
	}
}

func TestNextStateFallsBackToEventOnly(t *testing.T) {
	state, ok := NextState(addrs.PhaseEnsureHealthy, addrs.EventTerminalFailure, "")
	if !ok || state != addrs.StateCreationTerminated {
		t.Fatalf("got (%v, %v), want (creation_terminated, true)", state, ok)
	}
}

func TestNextStateUnmatchedReturnsFalse(t *testing.T) {
	if _, ok := NextState(addrs.PhaseTest, addrs.EventType("nonsense"), ""); ok {
		t.Fatal("expected no match")
	}
}

func TestNextTransitionStatusTable(t *testing.T) {
	cases := []struct {
		event addrs.EventType
		want  addrs.TransitionStatus
	}{
		{addrs.EventSentToBroker, addrs.StatusSentToBroker},
		{addrs.EventStarted, addrs.StatusInProgress},
		{addrs.EventSucceeded, addrs.StatusSucceeded},
		{addrs.EventTerminalFailure, addrs.StatusFailed},
	}
	for _, c := range cases {
		got, ok := NextTransitionStatus(c.event)
		if !ok || got != c.want {
			t.Fatalf("NextTransitionStatus(%v) = (%v, %v), want (%v, true)", c.event, got, ok, c.want)
		}
	}
}
