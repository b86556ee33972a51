// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package daemon

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/broker"
	"github.com/resourceforge/reconciler/internal/projector"
	"github.com/resourceforge/reconciler/internal/store"
)

// submitTransitionTasksPeriod is spec.md §4.8's "~12 s period".
const submitTransitionTasksPeriod = 12 * time.Second

const lockNameSubmitTransitionTasks = "submit_transition_tasks"

// defaultTaskTimeout is used when an adapter doesn't override
// RetryParams.TimeLimit for a phase.
const defaultTaskTimeout = 3 * time.Minute

// SubmitTransitionTasks runs the submit_transition_tasks loop until
// ctx is cancelled.
func SubmitTransitionTasks(ctx context.Context, s *store.Store, p *projector.Projector, b *broker.Broker, adapters *adapter.Registry, log hclog.Logger) {
	ticker := time.NewTicker(submitTransitionTasksPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runSubmitTransitionTasksTick(ctx, s, p, b, adapters, log)
		}
	}
}

func runSubmitTransitionTasksTick(ctx context.Context, s *store.Store, p *projector.Projector, b *broker.Broker, adapters *adapter.Registry, log hclog.Logger) {
	lock, acquired, err := s.TryAcquireDaemonLock(ctx, lockNameSubmitTransitionTasks)
	if err != nil {
		log.Error("advisory lock attempt failed", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer lock.Release(ctx)

	pending, err := s.PendingTransitions(ctx, addrs.StatusPending, batchSize)
	if err != nil {
		log.Error("submit_transition_tasks: scan failed", "error", err)
		return
	}

	for _, t := range pending {
		resource, err := s.GetResource(ctx, t.ResourceID)
		if err != nil {
			log.Error("submit_transition_tasks: resource lookup failed", "transition_id", t.ID, "error", err)
			continue
		}
		timeout := defaultTaskTimeout
		if a, err := adapters.Lookup(resource.Kind); err == nil {
			if params := a.RetryParams(t.Phase); params.TimeLimit > 0 {
				timeout = time.Duration(params.TimeLimit) * time.Second
			}
		}

		task := broker.Task{
			TransitionID: t.ID,
			ResourceID:   string(t.ResourceID),
			Phase:        string(t.Phase),
			Timeout:      timeout,
		}
		if err := b.Submit(ctx, task); err != nil {
			log.Error("submit_transition_tasks: publish failed", "transition_id", t.ID, "error", err)
			continue
		}
		if _, err := p.EmitTransitionEvent(ctx, projector.TransitionEventInput{
			TransitionID: t.ID,
			Type:         addrs.EventSentToBroker,
		}); err != nil {
			log.Error("submit_transition_tasks: status update failed", "transition_id", t.ID, "error", err)
		}
	}
}
