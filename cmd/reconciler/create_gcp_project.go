// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCreateGCPProjectCommand is a bootstrap-only command (spec.md
// §6) for the cloud project resources are declared against, which
// sits outside the resource FSM because the project itself isn't a
// tracked Resource row. It checks the cloud pool type and logs the
// request; it provisions nothing, since the fake cloud pool has no
// project-level API.
func newCreateGCPProjectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create_gcp_project <project_id>",
		Short: "Bootstrap a new cloud project for the engine to manage resources in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			cfg := loadEnvConfig()
			if cfg.CloudPoolType != "fake" && cfg.CloudPoolType != "" {
				return fmt.Errorf("unsupported RECONCILER_CLOUD_POOL_TYPE %q (only \"fake\" is built in)", cfg.CloudPoolType)
			}

			log.Info("project bootstrap requested", "project_id", projectID)
			log.Warn("create_gcp_project is a bootstrap stub: the fake cloud pool has no project-level API, nothing was provisioned")
			return nil
		},
	}
}
