// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// topLevelSchema mirrors the shape of the teacher's ResourceBlockSchema
// (internal/configs/resource.go), cut down to the three block types
// spec.md §6 allows at the top level of a document.
var topLevelSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "provider"},
		{Type: "locals"},
		{Type: "resource", LabelNames: []string{"kind", "name"}},
	},
}

var providerSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "provider_type", Required: true},
		{Name: "project_id", Required: true},
		{Name: "resources_app"},
	},
}

var resourceSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "slug", Required: true},
		{Name: "labels"},
		{Name: "extra_data"},
	},
}

// Parser parses declarative documents. fs is the filesystem used to
// resolve ${file("<path>")} interpolations; tests substitute an
// in-memory afero.Fs.
type Parser struct {
	fs afero.Fs
}

// NewParser returns a Parser that resolves file() against the real
// OS filesystem.
func NewParser() *Parser {
	return &Parser{fs: afero.NewOsFs()}
}

// NewParserWithFS returns a Parser that resolves file() against fs,
// for hermetic tests.
func NewParserWithFS(fs afero.Fs) *Parser {
	return &Parser{fs: fs}
}

// Parse reads and decodes the document at path. It resolves
// ${local.x} and ${file(...)} interpolations but leaves cross-resource
// references (${kind.name.attr}) unresolved; call ResolveReferences
// on the result once the caller has topologically sorted the
// resources.
func (p *Parser) Parse(path string) (*Document, error) {
	src, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	hclParser := hclparse.NewParser()
	file, diags := hclParser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}

	content, diags := file.Body.Content(topLevelSchema)
	if diags.HasErrors() {
		return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}

	doc := &Document{Locals: map[string]cty.Value{}}

	var providerBlock *hcl.Block
	var localsBlocks []*hcl.Block
	var resourceBlocks []*hcl.Block
	for _, block := range content.Blocks {
		switch block.Type {
		case "provider":
			if providerBlock != nil {
				return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: hcl.Diagnostics{{
					Severity: hcl.DiagError,
					Summary:  "Duplicate provider block",
					Detail:   "A document may declare at most one provider block.",
					Subject:  block.DefRange.Ptr(),
				}}}
			}
			providerBlock = block
		case "locals":
			localsBlocks = append(localsBlocks, block)
		case "resource":
			resourceBlocks = append(resourceBlocks, block)
		}
	}

	if providerBlock == nil {
		return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Missing provider block",
			Detail:   "A document must declare exactly one provider block.",
		}}}
	}
	if err := decodeProvider(providerBlock, &doc.Provider); err != nil {
		return nil, err
	}

	funcs := builtinFunctions(p.fs)
	for _, block := range localsBlocks {
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
		}
		ctx := &hcl.EvalContext{
			Variables: map[string]cty.Value{"local": cty.ObjectVal(doc.Locals)},
			Functions: funcs,
		}
		for name, attr := range attrs {
			v, diags := attr.Expr.Value(ctx)
			if diags.HasErrors() {
				return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
			}
			doc.Locals[name] = v
		}
	}

	kindsByAddr := map[string]bool{}
	for _, block := range resourceBlocks {
		kindsByAddr[block.Labels[0]+"."+block.Labels[1]] = true
	}

	for _, block := range resourceBlocks {
		rb, err := decodeResource(block, doc.Locals, p.fs, funcs, kindsByAddr)
		if err != nil {
			return nil, err
		}
		doc.Resources = append(doc.Resources, rb)
	}

	if err := detectCycles(doc.Resources); err != nil {
		return nil, err
	}

	return doc, nil
}

func decodeProvider(block *hcl.Block, p *Provider) error {
	content, diags := block.Body.Content(providerSchema)
	if diags.HasErrors() {
		return &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}
	var providerType string
	if diags := gohcl.DecodeExpression(content.Attributes["provider_type"].Expr, nil, &providerType); diags.HasErrors() {
		return &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}
	p.Type = ProviderType(providerType)
	if diags := gohcl.DecodeExpression(content.Attributes["project_id"].Expr, nil, &p.ProjectID); diags.HasErrors() {
		return &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}
	if attr, ok := content.Attributes["resources_app"]; ok {
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &p.ResourcesApp); diags.HasErrors() {
			return &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
		}
	}
	return nil
}

func decodeResource(block *hcl.Block, locals map[string]cty.Value, fs afero.Fs, funcs map[string]function.Function, kindsByAddr map[string]bool) (*ResourceBlock, error) {
	content, diags := block.Body.Content(resourceSchema)
	if diags.HasErrors() {
		return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}

	rb := &ResourceBlock{
		Kind: addrs.Kind(block.Labels[0]),
		Name: block.Labels[1],
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"local": cty.ObjectVal(locals)},
		Functions: funcs,
	}

	var slug string
	if diags := gohcl.DecodeExpression(content.Attributes["slug"].Expr, ctx, &slug); diags.HasErrors() {
		return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
	}
	rb.Slug = addrs.Slug(slug)
	if err := rb.Slug.Validate(); err != nil {
		return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid slug",
			Detail:   err.Error(),
			Subject:  content.Attributes["slug"].Expr.Range().Ptr(),
		}}}
	}

	if attr, ok := content.Attributes["labels"]; ok {
		labels := map[string]string{}
		if diags := gohcl.DecodeExpression(attr.Expr, ctx, &labels); diags.HasErrors() {
			return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
		}
		rb.Labels = labels
	}

	if attr, ok := content.Attributes["extra_data"]; ok {
		// Cross-resource references inside extra_data cannot be
		// evaluated yet (the referenced resource hasn't had its
		// canonical identifier computed), so we extract them as
		// DependencyEdge entries here and defer evaluation to
		// ResolveReferences.
		edges := extractResourceReferences(attr.Expr, kindsByAddr, "extra_data")
		rb.DependsOn = edges
		if len(edges) == 0 {
			v, diags := attr.Expr.Value(ctx)
			if diags.HasErrors() {
				return nil, &ValidationError{Reason: addrs.EventHclValidationFailed, Diags: diags}
			}
			rb.ExtraData = v
		} else {
			// Evaluated later by ResolveReferences once dependency
			// order is known; store the raw expression by stashing
			// the unresolved marker so ResolveReferences knows to
			// come back and evaluate it.
			rb.ExtraData = cty.DynamicVal
			rb.unresolvedExpr = attr.Expr
			rb.locals = locals
			rb.fs = fs
		}
	}

	return rb, nil
}

// extractResourceReferences walks expr's traversals looking for roots
// that name a declared resource kind (as opposed to "local", which is
// resolved eagerly, above).
func extractResourceReferences(expr hcl.Expression, kindsByAddr map[string]bool, fieldName string) []DependencyEdge {
	var edges []DependencyEdge
	for _, t := range expr.Variables() {
		if len(t) < 2 {
			continue
		}
		root, ok := t[0].(hcl.TraverseRoot)
		if !ok || root.Name == "local" {
			continue
		}
		attr, ok := t[1].(hcl.TraverseAttr)
		if !ok {
			continue
		}
		addr := root.Name + "." + attr.Name
		if !kindsByAddr[addr] {
			continue
		}
		edges = append(edges, DependencyEdge{
			DependsOnKind: addrs.Kind(root.Name),
			DependsOnName: attr.Name,
			FieldName:     fieldName,
		})
	}
	return edges
}
