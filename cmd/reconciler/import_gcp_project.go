// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/store"
)

// importableKinds lists the adapter kinds import_gcp_project scans,
// in dependency order so a network is imported before the subnets and
// firewalls that reference it.
var importableKinds = []addrs.Kind{"vpc_network", "subnet", "firewall", "instance"}

// newImportGCPProjectCommand is the other bootstrap-only command
// spec.md §6 names: adopt resources that already exist in the cloud
// project (created outside this engine) as tracked Resource rows, so
// subsequent hcl_apply runs reconcile against them instead of
// re-creating duplicates.
func newImportGCPProjectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import_gcp_project <project_id>",
		Short: "Adopt a cloud project's existing resources as tracked resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			cfg := loadEnvConfig()

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			adapters, err := buildAdapterRegistry(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			imported := 0
			for _, kind := range importableKinds {
				a, err := adapters.Lookup(kind)
				if err != nil {
					continue
				}
				entries, err := a.List(ctx)
				if err != nil {
					return fmt.Errorf("listing %s: %w", kind, err)
				}
				for _, entry := range entries {
					id := a.ExtractFromListResponse(entry)
					if id == "" {
						continue
					}
					slug := addrs.Slug(id)
					ref := addrs.Ref{Slug: slug, Kind: kind, Project: projectID}
					if _, err := s.GetResourceByRef(ctx, ref); err == nil {
						continue // already tracked
					} else if err != store.ErrNotFound {
						return fmt.Errorf("looking up %s: %w", ref, err)
					}

					respJSON, err := json.Marshal(entry)
					if err != nil {
						return fmt.Errorf("marshalling list entry for %s: %w", ref, err)
					}

					rid := store.NewResourceID()
					if err := s.CreateResource(ctx, &store.Resource{
						ID:           rid,
						Slug:         slug,
						Kind:         kind,
						Project:      projectID,
						DesiredState: addrs.DesiredHealthy,
						ExtraData:    json.RawMessage("{}"),
					}); err != nil {
						return fmt.Errorf("importing %s: %w", ref, err)
					}
					if err := s.SetListResponse(ctx, rid, respJSON); err != nil {
						return fmt.Errorf("recording list response for %s: %w", ref, err)
					}
					if err := s.SetExistence(ctx, rid, addrs.ExistenceExists); err != nil {
						return fmt.Errorf("recording existence for %s: %w", ref, err)
					}
					log.Info("imported resource", "addr", ref, "id", rid)
					imported++
				}
			}

			log.Info("import complete", "project_id", projectID, "imported", imported)
			return nil
		},
	}
}
