// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/graphvault/graphvault/internal/edm"
)

// newSeedCmd creates the seed subcommand. It validates a schema seed file
// by loading it into a fresh registry; the serve command loads the same
// file at startup.
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <path>",
		Short: "Validate a schema seed file",
		Long: `Parse a YAML schema seed (property types, entity types, association
types, entity sets) and check all declarations resolve, without touching the
database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := edm.NewMemoryRegistry()
			if err := edm.LoadSeed(args[0], registry); err != nil {
				return err
			}
			cmd.Printf("Seed %s is valid\n", args[0])
			return nil
		},
	}
}
