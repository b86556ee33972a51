// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// cycleState is the classic DFS three-colour scheme: a vertex not yet
// visited, on the current recursion stack, or fully resolved. The
// teacher's internal/dag.AcyclicGraph solves the same problem for a
// much richer graph (module calls, instance expansion); our
// dependency edges are a flat list known entirely at parse time, so a
// direct DFS is enough and needs no separate graph package.
type cycleState int

const (
	cycleUnvisited cycleState = iota
	cycleVisiting
	cycleResolved
)

// detectCycles walks the DependsOn edges declared on each resource
// block and fails with hcl_validation_failed (reason cycle_found) if
// any cycle exists, per spec.md §6.
func detectCycles(resources []*ResourceBlock) error {
	byAddr := make(map[string]*ResourceBlock, len(resources))
	for _, r := range resources {
		byAddr[r.Addr()] = r
	}

	state := make(map[string]cycleState, len(resources))
	var stack []string

	var visit func(addr string) error
	visit = func(addr string) error {
		switch state[addr] {
		case cycleResolved:
			return nil
		case cycleVisiting:
			return &ValidationError{
				Reason: addrs.EventHclValidationFailed,
				Diags: hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "cycle_found",
					Detail:   "Dependency cycle detected: " + cyclePath(stack, addr),
				}},
			}
		}
		state[addr] = cycleVisiting
		stack = append(stack, addr)
		r := byAddr[addr]
		if r != nil {
			for _, e := range r.DependsOn {
				depAddr := string(e.DependsOnKind) + "." + e.DependsOnName
				if err := visit(depAddr); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[addr] = cycleResolved
		return nil
	}

	for _, r := range resources {
		if err := visit(r.Addr()); err != nil {
			return err
		}
	}
	return nil
}

func cyclePath(stack []string, closing string) string {
	out := closing
	for i := len(stack) - 1; i >= 0; i-- {
		out = stack[i] + " -> " + out
		if stack[i] == closing {
			break
		}
	}
	return out
}

// ResolveReferences evaluates any extra_data expression that was
// deferred during Parse because it referenced another resource
// (${kind.name.attr}). resolved supplies, for each already-resolved
// resource address, the cty object its attributes can be read from
// (typically {id = ..., slug = ...}, built by the caller from the
// store's resource id and slug, as hcl_apply does). Callers must
// invoke this once per resource in topological order (dependencies
// first), per spec.md §9 ("do not compute topology at runtime").
func (r *ResourceBlock) ResolveReferences(resolved map[string]cty.Value) error {
	if r.unresolvedExpr == nil {
		return nil
	}
	vars := map[string]cty.Value{"local": cty.ObjectVal(r.locals)}
	for addr, v := range resolved {
		root := addrKindPart(addr)
		if _, ok := vars[root]; !ok {
			vars[root] = cty.ObjectVal(map[string]cty.Value{})
		}
		name := addrNamePart(addr)
		existing := vars[root].AsValueMap()
		if existing == nil {
			existing = map[string]cty.Value{}
		}
		existing[name] = v
		vars[root] = cty.ObjectVal(existing)
	}

	ctx := &hcl.EvalContext{
		Variables: vars,
		Functions: builtinFunctions(r.fs),
	}
	v, diags := r.unresolvedExpr.Value(ctx)
	if diags.HasErrors() {
		return &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}
	r.ExtraData = v
	r.unresolvedExpr = nil
	return nil
}

func addrKindPart(addr string) string {
	for i, c := range addr {
		if c == '.' {
			return addr[:i]
		}
	}
	return addr
}

func addrNamePart(addr string) string {
	for i, c := range addr {
		if c == '.' {
			return addr[i+1:]
		}
	}
	return ""
}

// TopologicalOrder returns resources ordered so that every resource
// appears after everything it depends on. Callers use this order to
// drive both ResolveReferences and (once adapters are wired) the
// id-generation pass the cross-resource references depend on.
// detectCycles must have already been called and returned nil.
func TopologicalOrder(resources []*ResourceBlock) []*ResourceBlock {
	byAddr := make(map[string]*ResourceBlock, len(resources))
	for _, r := range resources {
		byAddr[r.Addr()] = r
	}

	visited := make(map[string]bool, len(resources))
	var order []*ResourceBlock

	var visit func(r *ResourceBlock)
	visit = func(r *ResourceBlock) {
		if visited[r.Addr()] {
			return
		}
		visited[r.Addr()] = true
		for _, e := range r.DependsOn {
			if dep, ok := byAddr[string(e.DependsOnKind)+"."+e.DependsOnName]; ok {
				visit(dep)
			}
		}
		order = append(order, r)
	}
	for _, r := range resources {
		visit(r)
	}
	return order
}
