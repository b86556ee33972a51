// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"testing"
	"time"

	"github.com/resourceforge/reconciler/internal/broker"
)

func TestWithNextAttemptIncrementsAndClearsReschedule(t *testing.T) {
	task := broker.Task{AttemptIndex: 1, Rescheduled: true}
	got := withNextAttempt(task)
	if got.AttemptIndex != 2 {
		t.Fatalf("AttemptIndex = %d, want 2", got.AttemptIndex)
	}
	if got.Rescheduled {
		t.Fatal("expected Rescheduled cleared on normal retry")
	}
}

func TestWithRescheduleFlags(t *testing.T) {
	task := broker.Task{AttemptIndex: 0, SubmittedAt: time.Now()}
	got := withRescheduleFlags(task, true, 3)
	if !got.Rescheduled || got.AttemptIndex != 3 {
		t.Fatalf("got %+v, want Rescheduled=true AttemptIndex=3", got)
	}
}
