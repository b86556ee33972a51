// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/broker"
	"github.com/resourceforge/reconciler/internal/checkpoint"
	"github.com/resourceforge/reconciler/internal/cloudapi"
	"github.com/resourceforge/reconciler/internal/store"
)

// fakeStore is an in-memory stand-in for *store.Store, letting
// Runner.Execute and the projector it drives be tested without a live
// Postgres. It applies writes with the same semantics the real store
// exposes (events are append-only, state/status updates mutate the
// row in place) so tests observe realistic projector behavior.
type fakeStore struct {
	mu               sync.Mutex
	resources        map[addrs.ResourceID]*store.Resource
	transitions      map[string]*store.Transition
	resourceEvents   []*store.ResourceEvent
	transitionEvents []*store.TransitionEvent
	attempts         map[string]*store.Attempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		resources:   make(map[addrs.ResourceID]*store.Resource),
		transitions: make(map[string]*store.Transition),
		attempts:    make(map[string]*store.Attempt),
	}
}

func (f *fakeStore) GetTransition(_ context.Context, id string) (*store.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transitions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) GetResource(_ context.Context, id addrs.ResourceID) (*store.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GetResourceByRef(context.Context, addrs.Ref) (*store.Resource, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateResource(_ context.Context, r *store.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[r.ID] = r
	return nil
}

func (f *fakeStore) AddDependency(context.Context, addrs.ResourceID, addrs.ResourceID, string) error {
	return nil
}

func (f *fakeStore) ForwardDependencies(context.Context, addrs.ResourceID) ([]*store.Resource, error) {
	return nil, nil
}

func (f *fakeStore) ReverseDependencies(context.Context, addrs.ResourceID) ([]*store.Resource, error) {
	return nil, nil
}

func (f *fakeStore) SetExtraData(_ context.Context, id addrs.ResourceID, extraData json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[id]; ok {
		r.ExtraData = extraData
	}
	return nil
}

func (f *fakeStore) ResourceEvents(_ context.Context, resourceID string) ([]*store.ResourceEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.ResourceEvent
	for _, e := range f.resourceEvents {
		if string(e.ResourceID) == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendResourceEvent(_ context.Context, e *store.ResourceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resourceEvents = append(f.resourceEvents, e)
	return nil
}

func (f *fakeStore) AppendTransitionEvent(_ context.Context, e *store.TransitionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitionEvents = append(f.transitionEvents, e)
	return nil
}

func (f *fakeStore) SetState(_ context.Context, id addrs.ResourceID, next addrs.State, causeEventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[id]; ok {
		r.State = next
		r.StateCauseEventID = causeEventID
	}
	return nil
}

func (f *fakeStore) SetExistence(_ context.Context, id addrs.ResourceID, existence addrs.Existence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[id]; ok {
		r.Existence = existence
	}
	return nil
}

func (f *fakeStore) SetHealth(_ context.Context, id addrs.ResourceID, health addrs.Health) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.resources[id]; ok {
		r.Health = health
	}
	return nil
}

func (f *fakeStore) SetTransitionStatus(_ context.Context, id string, next addrs.TransitionStatus, causeEventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transitions[id]; ok {
		t.Status = next
		t.StatusCauseEventID = causeEventID
	}
	return nil
}

func (f *fakeStore) CreateTransition(_ context.Context, t *store.Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions[t.ID] = t
	return nil
}

func (f *fakeStore) RecordAttempt(_ context.Context, a *store.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[a.ID] = a
	return nil
}

func (f *fakeStore) FinishAttempt(_ context.Context, id string, brokerFailed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[id]; ok {
		a.BrokerFailed = brokerFailed
	}
	return nil
}

// fakeCheckpointCache never hits, which is sufficient for runner-level
// tests that exercise dispatch/retry/dedup rather than phases'
// checkpoint behavior (covered separately in internal/phases).
type fakeCheckpointCache struct{}

func (fakeCheckpointCache) Get(context.Context, string, string) (*checkpoint.Result, bool, error) {
	return nil, false, nil
}

func (fakeCheckpointCache) Put(context.Context, string, string, checkpoint.Result) error {
	return nil
}

// fakeBroker records delayed submissions synchronously instead of
// sleeping in a goroutine, so tests can assert on rescheduled tasks
// without racing a timer.
type fakeBroker struct {
	mu          sync.Mutex
	submissions []fakeSubmission
}

type fakeSubmission struct {
	Task  broker.Task
	Delay time.Duration
}

func (b *fakeBroker) SubmitDelayed(_ context.Context, t broker.Task, delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submissions = append(b.submissions, fakeSubmission{Task: t, Delay: delay})
}

func (b *fakeBroker) last() (fakeSubmission, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.submissions) == 0 {
		return fakeSubmission{}, false
	}
	return b.submissions[len(b.submissions)-1], true
}

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submissions)
}

// fakeAdapter is a minimal adapter.Adapter implementation whose only
// test-relevant behavior is the retry policy it returns.
type fakeAdapter struct {
	retryParams adapter.RetryParams
}

func (fakeAdapter) Kind() addrs.Kind                  { return "fake_kind" }
func (fakeAdapter) IDField() string                   { return "slug" }
func (fakeAdapter) GenerateID(json.RawMessage) string { return "" }
func (fakeAdapter) ExtractFromListResponse(cloudapi.Response) string   { return "" }
func (fakeAdapter) ExtractFromCreateResponse(cloudapi.Response) string { return "" }

func (fakeAdapter) List(context.Context) ([]cloudapi.Response, error) { return nil, nil }
func (fakeAdapter) Create(context.Context, addrs.Slug, json.RawMessage) (bool, cloudapi.Response, error) {
	return true, cloudapi.Response{}, nil
}
func (fakeAdapter) Delete(context.Context, string) (bool, cloudapi.Response, error) {
	return true, cloudapi.Response{}, nil
}
func (fakeAdapter) HealthChecks() []adapter.HealthCheck { return nil }
func (fakeAdapter) ExistsHook(context.Context, cloudapi.Response, json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}
func (fakeAdapter) HealthyHook(context.Context, addrs.Slug, json.RawMessage) ([]adapter.ChildResource, error) {
	return nil, nil
}
func (fakeAdapter) DeletedHook(context.Context, json.RawMessage) error { return nil }
func (fakeAdapter) Validate(json.RawMessage) error                     { return nil }

func (a fakeAdapter) RetryParams(addrs.Phase) adapter.RetryParams { return a.retryParams }
