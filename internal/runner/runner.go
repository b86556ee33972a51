// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/broker"
	"github.com/resourceforge/reconciler/internal/checkpoint"
	"github.com/resourceforge/reconciler/internal/projector"
	"github.com/resourceforge/reconciler/internal/store"
)

// duplicateTaskDelay and hardTimeoutRescheduleDelay are the fixed
// delays spec.md §4.5 names explicitly (steps 2 and 8).
const (
	duplicateTaskDelay         = 90 * time.Second
	hardTimeoutRescheduleDelay = 60 * time.Second
	maxHardTimeoutReschedules  = 2 // "attempt index < 2"
)

// Broker is the task-delivery surface the runner needs for rescheduling
// (retry/duplicate/hard-timeout continuations); *broker.Broker
// satisfies it structurally.
type Broker interface {
	SubmitDelayed(ctx context.Context, t broker.Task, delay time.Duration)
}

// Runner executes transitions delivered by the broker, translating
// phase handler outcomes into projector events per spec.md §4.5.
type Runner struct {
	Store      Store
	Projector  *projector.Projector
	Checkpoint CheckpointCache
	Broker     Broker
	Adapters   *adapter.Registry
	Phases     Registry
	Log        hclog.Logger
}

// Execute runs one delivered task end to end. It never returns an
// error for expected outcomes (retry/terminal failure are recorded as
// events, not surfaced to the broker as delivery failures); a non-nil
// error here means infrastructure failed (store/broker unreachable),
// which the caller should treat as a redelivery-worthy broker error.
func (r *Runner) Execute(ctx context.Context, task broker.Task) error {
	log := r.Log.With("transition_id", task.TransitionID, "phase", task.Phase)

	transition, err := r.Store.GetTransition(ctx, task.TransitionID)
	if err != nil || transition == nil {
		log.Warn("context hydration failed: transition not found")
		return nil
	}
	resource, err := r.Store.GetResource(ctx, transition.ResourceID)
	if err != nil || resource == nil {
		log.Warn("context hydration failed: resource not found")
		_, _ = r.Projector.EmitTransitionEvent(ctx, projector.TransitionEventInput{
			TransitionID: task.TransitionID,
			Type:         addrs.EventContextHydrationFailed,
		})
		return nil
	}

	a, err := r.Adapters.Lookup(resource.Kind)
	if err != nil {
		return r.terminalFailure(ctx, resource.ID, task.TransitionID, addrs.ReasonNotReady, nil)
	}

	// Step 2: duplicate detection / revocation (spec.md §4.5).
	if transition.Status.IsTerminal() {
		log.Debug("transition already terminal, revoking delivery")
		return nil
	}
	if transition.Status == addrs.StatusInProgress && task.AttemptIndex == 0 && !task.Rescheduled {
		if _, err := r.Projector.EmitTransitionEvent(ctx, projector.TransitionEventInput{
			TransitionID: task.TransitionID,
			Type:         addrs.EventPotentialDuplicateTask,
		}); err != nil {
			return err
		}
		r.Broker.SubmitDelayed(ctx, withRescheduleFlags(task, true, task.AttemptIndex), duplicateTaskDelay)
		return nil
	}

	attemptID := uuid.NewString()
	if err := r.Store.RecordAttempt(ctx, &store.Attempt{
		ID:           attemptID,
		TransitionID: task.TransitionID,
		Index:        task.AttemptIndex,
		IsDuplicate:  task.Rescheduled && task.AttemptIndex == 0,
	}); err != nil {
		return err
	}
	defer func() { _ = r.Store.FinishAttempt(ctx, attemptID, false) }()

	if task.AttemptIndex == 0 {
		if _, err := r.Projector.EmitTransitionEvent(ctx, projector.TransitionEventInput{
			TransitionID: task.TransitionID,
			Type:         addrs.EventStarted,
		}); err != nil {
			return err
		}
	}

	handler, ok := r.Phases[transition.Phase]
	if !ok {
		return r.terminalFailure(ctx, resource.ID, task.TransitionID, "", nil)
	}

	pc := &PhaseContext{
		Resource:     resource,
		Transition:   transition,
		AttemptIndex: task.AttemptIndex,
		Rescheduled:  task.Rescheduled,
		Adapter:      a,
		Store:        r.Store,
		Checkpoint:   r.Checkpoint,
		Log:          log,
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	next, handlerErr := handler(runCtx, pc)

	var retryReq *RetryRequest
	var termFail *TerminalFailure

	switch {
	case errors.As(handlerErr, &retryReq):
		return r.onRetry(ctx, task, resource.ID, a, retryReq)
	case errors.As(handlerErr, &termFail):
		return r.onTerminalFailure(ctx, resource.ID, task.TransitionID, transition.Phase, termFail)
	case errors.Is(handlerErr, context.DeadlineExceeded):
		return r.onHardTimeout(ctx, task, resource.ID)
	case handlerErr != nil:
		// Uncaught I/O-class errors are retryable (spec.md §4.5).
		return r.onRetry(ctx, task, resource.ID, a, &RetryRequest{EventType: addrs.EventRetrying})
	}

	if _, err := r.Projector.EmitTransitionEvent(ctx, projector.TransitionEventInput{
		TransitionID: task.TransitionID,
		Type:         addrs.EventSucceeded,
	}); err != nil {
		return err
	}

	if next != nil {
		if err := r.createNextTransition(ctx, resource.ID, task.TransitionID, *next); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) onRetry(ctx context.Context, task broker.Task, resourceID addrs.ResourceID, a adapter.Adapter, req *RetryRequest) error {
	policy := a.RetryParams(addrs.Phase(task.Phase)).Policy
	age := time.Since(task.SubmittedAt)
	if policy.Exhausted(task.AttemptIndex, age) {
		reason := req.Reason
		if req.ExhaustionSideEffect != nil {
			reason = req.ExhaustionSideEffect.Reason
		}
		if err := r.terminalFailure(ctx, resourceID, task.TransitionID, reason, req.Info); err != nil {
			return err
		}
		if side := req.ExhaustionSideEffect; side != nil && side.EventType != "" && side.EventType != addrs.EventTerminalFailure {
			_, err := r.Projector.EmitResourceEvent(ctx, projector.ResourceEventInput{
				ResourceID:   resourceID,
				TransitionID: task.TransitionID,
				Phase:        addrs.Phase(task.Phase),
				Type:         side.EventType,
				Reason:       side.Reason,
				ExtraInfo:    req.Info,
			})
			return err
		}
		return nil
	}

	if _, err := r.Projector.EmitResourceEvent(ctx, projector.ResourceEventInput{
		ResourceID:   resourceID,
		TransitionID: task.TransitionID,
		Phase:        addrs.Phase(task.Phase),
		Type:         req.EventType,
		Reason:       req.Reason,
		ExtraInfo:    req.Info,
	}); err != nil {
		return err
	}
	if _, err := r.Projector.EmitTransitionEvent(ctx, projector.TransitionEventInput{
		TransitionID: task.TransitionID,
		Type:         addrs.EventRetrying,
		Reason:       req.Reason,
	}); err != nil {
		return err
	}

	delay := policy.Delay(task.AttemptIndex)
	r.Broker.SubmitDelayed(ctx, withNextAttempt(task), delay)
	return nil
}

func (r *Runner) onTerminalFailure(ctx context.Context, resourceID addrs.ResourceID, transitionID string, phase addrs.Phase, t *TerminalFailure) error {
	if err := r.terminalFailure(ctx, resourceID, transitionID, t.Reason, t.Info); err != nil {
		return err
	}
	if t.EventType == "" || t.EventType == addrs.EventTerminalFailure {
		return nil
	}
	_, err := r.Projector.EmitResourceEvent(ctx, projector.ResourceEventInput{
		ResourceID:   resourceID,
		TransitionID: transitionID,
		Phase:        phase,
		Type:         t.EventType,
		Reason:       t.Reason,
		ExtraInfo:    t.Info,
	})
	return err
}

// terminalFailure records a terminal_failure event on both the
// resource and the transition (spec.md §4.5, step 7: "emit
// terminal_failure on both resource and transition").
func (r *Runner) terminalFailure(ctx context.Context, resourceID addrs.ResourceID, transitionID string, reason addrs.Reason, info []byte) error {
	if _, err := r.Projector.EmitResourceEvent(ctx, projector.ResourceEventInput{
		ResourceID:   resourceID,
		TransitionID: transitionID,
		Type:         addrs.EventTerminalFailure,
		Reason:       reason,
		ExtraInfo:    info,
	}); err != nil {
		return err
	}
	_, err := r.Projector.EmitTransitionEvent(ctx, projector.TransitionEventInput{
		TransitionID: transitionID,
		Type:         addrs.EventTerminalFailure,
		Reason:       reason,
	})
	return err
}

func (r *Runner) onHardTimeout(ctx context.Context, task broker.Task, resourceID addrs.ResourceID) error {
	if !task.Rescheduled && task.AttemptIndex < maxHardTimeoutReschedules {
		if _, err := r.Projector.EmitTransitionEvent(ctx, projector.TransitionEventInput{
			TransitionID: task.TransitionID,
			Type:         addrs.EventRescheduling,
		}); err != nil {
			return err
		}
		r.Broker.SubmitDelayed(ctx, withRescheduleFlags(task, true, task.AttemptIndex+1), hardTimeoutRescheduleDelay)
		return nil
	}
	return r.terminalFailure(ctx, resourceID, task.TransitionID, addrs.ReasonHardTimeout, nil)
}

func (r *Runner) createNextTransition(ctx context.Context, resourceID addrs.ResourceID, previousTransitionID string, next NextPhase) error {
	t := &store.Transition{
		ID:                 store.NewTransitionID(),
		ResourceID:         resourceID,
		Phase:              next.Phase,
		Status:             addrs.StatusPending,
		UpdateType:         next.UpdateType,
		ExtraTaskKwargs:    next.ExtraTaskKwargs,
		PreviousTransition: previousTransitionID,
	}
	if err := r.Store.CreateTransition(ctx, t); err != nil && !errors.Is(err, store.ErrTransitionAlreadyPending) {
		return err
	}
	return nil
}

func withNextAttempt(t broker.Task) broker.Task {
	t.AttemptIndex++
	t.Rescheduled = false
	return t
}

func withRescheduleFlags(t broker.Task, rescheduled bool, attemptIndex int) broker.Task {
	t.Rescheduled = rescheduled
	t.AttemptIndex = attemptIndex
	return t
}
