// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the GraphVault CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphvault",
		Short: "GraphVault - a multi-tenant property graph store",
		Long: `GraphVault stores typed entities and associations in permissioned
entity sets, with batched ACL checks on every mutation and cascading,
authorization-gated deletion.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
