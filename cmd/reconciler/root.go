// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Command reconciler is the transition engine's CLI entrypoint:
// bootstrap commands (init_db), ingestion (hcl_apply), and operator
// escape hatches (do_transition), one subcommand per file registered
// onto a root command, the shape the teacher's internal/command/cobra_root.go
// uses for its own command tree.
package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var log = hclog.New(&hclog.LoggerOptions{
	Name:  "reconciler",
	Level: hclog.LevelFromString(envOr("RECONCILER_LOG_LEVEL", "info")),
})

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Declarative cloud-resource transition engine",
	Long:  "reconciler drives declared cloud resources toward their desired state through a durable, retry-aware transition engine.",
}

func init() {
	rootCmd.AddCommand(newHCLApplyCommand())
	rootCmd.AddCommand(newDoTransitionCommand())
	rootCmd.AddCommand(newInitDBCommand())
	rootCmd.AddCommand(newCreateGCPProjectCommand())
	rootCmd.AddCommand(newImportGCPProjectCommand())
	rootCmd.AddCommand(newWorkerCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
