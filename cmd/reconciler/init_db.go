// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newInitDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init_db",
		Short: "Apply the schema to the configured Postgres database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadEnvConfig()
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			if err := s.InitSchema(ctx); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}
