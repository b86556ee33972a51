// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/resourceforge/reconciler/internal/daemon"
	"github.com/resourceforge/reconciler/internal/phases"
	"github.com/resourceforge/reconciler/internal/projector"
	"github.com/resourceforge/reconciler/internal/runner"
)

// newWorkerCommand runs the long-lived process spec.md §5 describes:
// a queue-group subscriber executing delivered transition tasks
// through the phase registry, alongside the two periodic daemons
// (create_missing_transitions, submit_transition_tasks) that keep the
// broker fed. All three share one Store (a Postgres connection pool);
// each daemon tick runs only while holding its Postgres advisory lock,
// so running several worker processes is how the engine scales out (spec.md §4.8, "best-effort singleton via advisory lock").
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the transition executor and its periodic daemons until signalled",
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

			cache := openCheckpointCache(cfg)
			adapters, err := buildAdapterRegistry(cfg)
			if err != nil {
				return err
			}
			p := projector.New(s)

			r := &runner.Runner{
				Store:      s,
				Projector:  p,
				Checkpoint: cache,
				Broker:     b,
				Adapters:   adapters,
				Phases:     phases.Registry(),
				Log:        log,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sub, err := b.Subscribe(ctx, r.Execute)
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				daemon.CreateMissingTransitions(gctx, s, adapters, log)
				return nil
			})
			g.Go(func() error {
				daemon.SubmitTransitionTasks(gctx, s, p, b, adapters, log)
				return nil
			})

			log.Info("worker started", "queue_group", "reconciler-workers")
			<-ctx.Done()
			log.Info("worker shutting down")
			return g.Wait()
		},
	}
}
