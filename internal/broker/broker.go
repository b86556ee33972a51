// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package broker dispatches transition-execution tasks to worker
// processes over NATS. A task names the transition to run; workers in
// the same queue group compete for deliveries so each task lands on
// exactly one live worker, the load-sharing behavior spec.md §4.5
// assumes a broker provides ("a background broker (queue) for task
// delivery", spec.md §5).
package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Subject is the NATS subject transition tasks are published on.
const Subject = "reconciler.transitions"

// QueueGroup is the NATS queue group worker subscriptions share, so a
// published task is delivered to exactly one worker.
const QueueGroup = "reconciler-workers"

// Task is the message submitted for one transition attempt (spec.md
// §4.5/§4.8: "submit ... to the broker with per-phase timeouts").
type Task struct {
	TransitionID string        `json:"transition_id"`
	ResourceID   string        `json:"resource_id"`
	Phase        string        `json:"phase"`
	AttemptIndex int           `json:"attempt_index"`
	Rescheduled  bool          `json:"rescheduled"`
	Timeout      time.Duration `json:"timeout"`
	SubmittedAt  time.Time     `json:"submitted_at"`
}

// Broker wraps a NATS connection for publish/subscribe of Tasks.
type Broker struct {
	nc *nats.Conn
}

// Connect dials url (a NATS server address, e.g. "nats://localhost:4222").
func Connect(url string) (*Broker, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &Broker{nc: nc}, nil
}

// Close drains and closes the underlying NATS connection.
func (b *Broker) Close() {
	b.nc.Drain()
}

// Submit publishes a task for delivery to one worker, used by the
// submit_transition_tasks daemon (spec.md §4.8).
func (b *Broker) Submit(ctx context.Context, t Task) error {
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now()
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: Subject, Data: payload}
	return b.nc.PublishMsg(msg)
}

// SubmitDelayed schedules a task after delay by sleeping in a detached
// goroutine before publishing; used by the rescheduling path (spec.md
// §4.5, "enqueue a continuation with 60 s delay") and duplicate-task
// handling (90 s forced delay). The caller's ctx governs cancellation
// of the pending publish, not of work already dispatched.
func (b *Broker) SubmitDelayed(ctx context.Context, t Task, delay time.Duration) {
	go func() {
		select {
		case <-time.After(delay):
			_ = b.Submit(ctx, t)
		case <-ctx.Done():
		}
	}()
}

// Handler processes one delivered Task. Subscribe discards the error
// it returns: a failed delivery is neither acknowledged negatively
// nor redelivered.
type Handler func(ctx context.Context, t Task) error

// Subscribe starts a queue-group subscription so concurrent Worker
// instances share the Subject's task stream without duplicate
// delivery. It returns a *nats.Subscription the caller should
// Unsubscribe on shutdown.
func (b *Broker) Subscribe(ctx context.Context, h Handler) (*nats.Subscription, error) {
	return b.nc.QueueSubscribe(Subject, QueueGroup, func(msg *nats.Msg) {
		var t Task
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			return
		}
		_ = h(ctx, t)
	})
}
