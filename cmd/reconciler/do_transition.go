// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/broker"
	"github.com/resourceforge/reconciler/internal/projector"
)

// newDoTransitionCommand is the operator escape hatch spec.md §6
// names: force a specific pending (or stuck) transition back onto the
// broker without waiting for the submit_transition_tasks daemon's next
// tick, optionally overriding its status first.
func newDoTransitionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "do_transition <transition_id> [status_override]",
		Short: "Force a transition to be (re-)submitted to the broker",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadEnvConfig()
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			b, err := openBroker(cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			adapters, err := buildAdapterRegistry(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			transitionID := args[0]

			t, err := s.GetTransition(ctx, transitionID)
			if err != nil {
				return fmt.Errorf("looking up transition %s: %w", transitionID, err)
			}

			if len(args) == 2 {
				// A direct Store.SetTransitionStatus call, not a
				// projector.EmitTransitionEvent, because this is an
				// explicit operator override with no causing event to
				// record - the one place outside internal/projector
				// transition.status is intentionally written.
				status := addrs.TransitionStatus(args[1])
				if err := s.SetTransitionStatus(ctx, transitionID, status, ""); err != nil {
					return fmt.Errorf("overriding status: %w", err)
				}
				t.Status = status
			}

			resource, err := s.GetResource(ctx, t.ResourceID)
			if err != nil {
				return fmt.Errorf("looking up resource %s: %w", t.ResourceID, err)
			}

			timeout := defaultOperatorTaskTimeout
			if a, err := adapters.Lookup(resource.Kind); err == nil {
				if params := a.RetryParams(t.Phase); params.TimeLimit > 0 {
					timeout = secondsToDuration(params.TimeLimit)
				}
			}

			p := projector.New(s)
			if _, err := p.EmitTransitionEvent(ctx, projector.TransitionEventInput{
				TransitionID: transitionID,
				Type:         addrs.EventSentToBroker,
			}); err != nil {
				return err
			}

			if err := b.Submit(ctx, broker.Task{
				TransitionID: transitionID,
				ResourceID:   string(t.ResourceID),
				Phase:        string(t.Phase),
				Timeout:      timeout,
			}); err != nil {
				return fmt.Errorf("submitting task: %w", err)
			}

			log.Info("transition submitted", "transition_id", transitionID, "phase", t.Phase)
			return nil
		},
	}
}
