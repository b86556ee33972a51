// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package cloudapi

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Client used by unit tests and by a local
// dry-run mode: it never talks to a real provider. Items are keyed by
// Request.Name, matching the "server-side dedup by name" assumption
// the real client would provide.
type Fake struct {
	mu        sync.Mutex
	items     map[string]Response
	failCreate int
	failDelete int
}

// NewFake returns an empty Fake client.
func NewFake() *Fake {
	return &Fake{items: make(map[string]Response)}
}

// FailNextCreates makes the next n Create calls report ok=false before
// succeeding, for exercising the retry path (spec.md §8, "Creation
// retry on transient failure").
func (f *Fake) FailNextCreates(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreate = n
}

// FailNextDeletes is the delete-path analogue of FailNextCreates.
func (f *Fake) FailNextDeletes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete = n
}

func (f *Fake) Create(_ context.Context, req Request) (bool, Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate > 0 {
		f.failCreate--
		return false, Response{"error": "transient failure"}, nil
	}
	if existing, ok := f.items[req.Name]; ok {
		return true, existing, nil
	}
	resp := Response{"name": req.Name, "id": fmt.Sprintf("fake-%s", req.Name)}
	for k, v := range req.Fields {
		resp[k] = v
	}
	f.items[req.Name] = resp
	return true, resp, nil
}

func (f *Fake) List(_ context.Context) ([]Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Response, 0, len(f.items))
	for _, v := range f.items {
		out = append(out, v)
	}
	return out, nil
}

func (f *Fake) Delete(_ context.Context, id string) (bool, Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete > 0 {
		f.failDelete--
		return false, Response{"error": "transient failure"}, nil
	}
	for name, resp := range f.items {
		if fmt.Sprintf("%v", resp["id"]) == id || fmt.Sprintf("%v", resp["name"]) == id {
			delete(f.items, name)
			return true, resp, nil
		}
	}
	return true, Response{}, nil
}
