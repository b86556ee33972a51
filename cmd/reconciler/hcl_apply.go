// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/config"
	"github.com/resourceforge/reconciler/internal/store"
)

// newHCLApplyCommand implements spec.md §6's ingestion entrypoint:
// parse a declarative document, upsert every resource block it
// declares, and set desired_state on all of them to the word given as
// the second argument (default "healthy").
func newHCLApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hcl_apply <path> [healthy|deleted]",
		Short: "Ingest a declarative document and set the desired state of every resource it declares",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desired := addrs.DesiredHealthy
			if len(args) == 2 {
				switch args[1] {
				case "healthy":
					desired = addrs.DesiredHealthy
				case "deleted":
					desired = addrs.DesiredDeleted
				default:
					return fmt.Errorf("unrecognized desired state %q (want healthy or deleted)", args[1])
				}
			}

			cfg := loadEnvConfig()
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := config.NewParser().Parse(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			return applyDocument(ctx, s, doc, desired)
		},
	}
}

// applyDocument upserts every resource block in doc in dependency
// order, so a block whose extra_data references another resource sees
// that resource's already-assigned id when ResolveReferences runs.
func applyDocument(ctx context.Context, s *store.Store, doc *config.Document, desired addrs.DesiredState) error {
	ordered := config.TopologicalOrder(doc.Resources)
	resolved := map[string]cty.Value{}
	ids := map[string]addrs.ResourceID{}

	for _, rb := range ordered {
		if err := rb.ResolveReferences(resolved); err != nil {
			return fmt.Errorf("resolving %s: %w", rb.Addr(), err)
		}

		ref := addrs.Ref{Slug: rb.Slug, Kind: rb.Kind, Project: doc.Provider.ProjectID}
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("%s: %w", rb.Addr(), err)
		}

		extraData, err := rb.ExtraDataJSON()
		if err != nil {
			return fmt.Errorf("marshalling extra_data for %s: %w", rb.Addr(), err)
		}

		existing, err := s.GetResourceByRef(ctx, ref)
		switch {
		case err == store.ErrNotFound:
			id := store.NewResourceID()
			if err := s.CreateResource(ctx, &store.Resource{
				ID:           id,
				Slug:         rb.Slug,
				Kind:         rb.Kind,
				Project:      doc.Provider.ProjectID,
				DesiredState: desired,
				Labels:       rb.Labels,
				ExtraData:    extraData,
			}); err != nil {
				return fmt.Errorf("creating %s: %w", rb.Addr(), err)
			}
			ids[rb.Addr()] = id
		case err != nil:
			return fmt.Errorf("looking up %s: %w", rb.Addr(), err)
		default:
			if err := s.SetDesiredState(ctx, existing.ID, desired); err != nil {
				return fmt.Errorf("updating %s: %w", rb.Addr(), err)
			}
			if err := s.SetExtraData(ctx, existing.ID, extraData); err != nil {
				return fmt.Errorf("updating %s: %w", rb.Addr(), err)
			}
			ids[rb.Addr()] = existing.ID
		}

		resolved[rb.Addr()] = cty.ObjectVal(map[string]cty.Value{
			"id":   cty.StringVal(string(ids[rb.Addr()])),
			"slug": cty.StringVal(string(rb.Slug)),
		})

		for _, edge := range rb.DependsOn {
			depID, ok := ids[string(edge.DependsOnKind)+"."+edge.DependsOnName]
			if !ok {
				return fmt.Errorf("%s: dependency %s.%s was not resolved before use", rb.Addr(), edge.DependsOnKind, edge.DependsOnName)
			}
			if err := s.AddDependency(ctx, ids[rb.Addr()], depID, edge.FieldName); err != nil {
				return fmt.Errorf("recording dependency %s -> %s.%s: %w", rb.Addr(), edge.DependsOnKind, edge.DependsOnName, err)
			}
		}

		log.Info("applied resource", "addr", rb.Addr(), "id", ids[rb.Addr()], "desired_state", desired)
	}

	return nil
}
