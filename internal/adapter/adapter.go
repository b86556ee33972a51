// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package adapter defines the per-kind resource capability interface
// from spec.md §4.1 and a registry keyed by addrs.Kind, the same
// registry-by-string-key pattern the teacher uses for its provider
// factories (internal/providers).
package adapter

import (
	"context"
	"encoding/json"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/cloudapi"
	"github.com/resourceforge/reconciler/internal/retry"
)

// HealthCheck is one predicate in the ordered sequence health_checks
// returns (spec.md §4.1): passed reports whether it succeeded;
// terminal, when true on failure, means "fail fast, do not retry".
type HealthCheck struct {
	Name string
	Run  func(ctx context.Context, resp cloudapi.Response) (passed bool, terminal bool, err error)
}

// RetryParams is the per-phase override of the engine's retry policy
// defaults (spec.md §4.1).
type RetryParams struct {
	Policy        retry.Policy
	SoftTimeLimit int64 // seconds; 0 means adapter default
	TimeLimit     int64 // seconds; 0 means adapter default
}

// Adapter is the polymorphic capability handle spec.md §4.1 describes,
// one implementation per resource kind.
type Adapter interface {
	// Kind returns the addrs.Kind this adapter handles.
	Kind() addrs.Kind

	// IDField names the field used as the provider-facing identifier,
	// default "slug" (spec.md §4.1, "Identity").
	IDField() string

	// GenerateID computes a canonical provider id ahead of creation
	// when possible (e.g. a canonical URL), or "" if the id can only
	// be learned from the provider's response.
	GenerateID(extraData json.RawMessage) string

	// ExtractFromListResponse returns the id GenerateID would have
	// computed, read back from a List() entry, so the engine can
	// index a list snapshot by identifier.
	ExtractFromListResponse(resp cloudapi.Response) string

	// ExtractFromCreateResponse is ExtractFromListResponse's
	// Create-response counterpart.
	ExtractFromCreateResponse(resp cloudapi.Response) string

	// List returns the provider's current snapshot for this kind.
	List(ctx context.Context) ([]cloudapi.Response, error)

	// Create submits a creation request built from extraData.
	Create(ctx context.Context, slug addrs.Slug, extraData json.RawMessage) (ok bool, resp cloudapi.Response, err error)

	// Delete submits a deletion request for id.
	Delete(ctx context.Context, id string) (ok bool, resp cloudapi.Response, err error)

	// HealthChecks returns this kind's ordered health predicates.
	HealthChecks() []HealthCheck

	// ExistsHook reconciles provider identifiers and extra_data after
	// a resource is found to exist, via either a list or create
	// response.
	ExistsHook(ctx context.Context, resp cloudapi.Response, extraData json.RawMessage) (json.RawMessage, error)

	// HealthyHook runs once a resource becomes healthy; it may return
	// descriptors for derived child resources (spec.md §4.1, "may
	// spawn derived child resources"). slug is the resource's own
	// identity, needed when a child's extra_data must reference its
	// parent.
	HealthyHook(ctx context.Context, slug addrs.Slug, extraData json.RawMessage) ([]ChildResource, error)

	// DeletedHook runs cleanup once a resource is confirmed deleted.
	DeletedHook(ctx context.Context, extraData json.RawMessage) error

	// Validate runs schema and custom invariants over extraData,
	// failing with a descriptive error on violation (spec.md §4.1,
	// "fails with hcl_validation_failed on violation").
	Validate(extraData json.RawMessage) error

	// RetryParams returns phase's retry override, or the engine
	// default if this kind doesn't override phase.
	RetryParams(phase addrs.Phase) RetryParams
}

// ChildResource describes a resource a HealthyHook wants created,
// e.g. a VPC network's auto-created default subnetwork.
type ChildResource struct {
	Kind      addrs.Kind
	Slug      addrs.Slug
	ExtraData json.RawMessage
}

// Registry maps addrs.Kind to its Adapter, the lookup the phase
// handlers use to resolve a resource's behavior (spec.md §4.1: "a
// polymorphic handle ... variants keyed by kind").
type Registry struct {
	byKind map[addrs.Kind]Adapter
}

// NewRegistry returns a Registry populated with adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byKind: make(map[addrs.Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.byKind[a.Kind()] = a
	}
	return r
}

// Lookup returns the Adapter registered for kind, or
// cloudapi.ErrUnsupportedKind if none is registered.
func (r *Registry) Lookup(kind addrs.Kind) (Adapter, error) {
	a, ok := r.byKind[kind]
	if !ok {
		return nil, cloudapi.ErrUnsupportedKind{Kind: string(kind)}
	}
	return a, nil
}
