// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package config parses the declarative configuration document
// described in spec.md §6: one provider block, any number of locals
// blocks (merged into a flat map), and any number of resource blocks.
// Interpolations of the form ${local.<key>} and ${file("<path>")} are
// resolved here at ingestion time; ${<kind>.<name>.<attr>} references
// are cross-resource and are resolved only after the declared
// resources have been topologically sorted by their dependency edges.
package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// ProviderType selects the cloud backend the document's resources are
// declared against.
type ProviderType string

const (
	ProviderGoogle  ProviderType = "google"
	ProviderHetzner ProviderType = "hetzner"
)

// Provider is the document's single required provider block.
type Provider struct {
	Type          ProviderType
	ProjectID     string
	ResourcesApp  string
}

// DependencyEdge is an unresolved cross-resource reference discovered
// while scanning a resource block's body, before any evaluation has
// happened. FieldName records where in the body the reference
// appeared, matching ResourceDependency.field_name in spec.md §3.
type DependencyEdge struct {
	DependsOnKind addrs.Kind
	DependsOnName string
	FieldName     string
}

// ResourceBlock is one `resource "<kind>" "<name>" { ... }` block,
// after locals/file() interpolation but before cross-resource
// reference resolution.
type ResourceBlock struct {
	Kind      addrs.Kind
	Name      string
	Slug      addrs.Slug
	Labels    map[string]string
	ExtraData cty.Value
	DependsOn []DependencyEdge

	// unresolvedExpr, locals, and fs are set only when ExtraData
	// contains a cross-resource reference; ResolveReferences uses
	// them to evaluate the expression once dependency order is known.
	unresolvedExpr hcl.Expression
	locals         map[string]cty.Value
	fs             afero.Fs
}

// Addr is the dependency-graph vertex key for this resource block:
// kind.name, as used in ${kind.name.attr} references.
func (r *ResourceBlock) Addr() string {
	return string(r.Kind) + "." + r.Name
}

// Document is the fully-parsed, locals-resolved declarative document.
// Cross-resource references remain as DependencyEdge entries on each
// ResourceBlock until a caller resolves them in topological order
// (see ResolveReferences).
type Document struct {
	Provider  Provider
	Locals    map[string]cty.Value
	Resources []*ResourceBlock
}
