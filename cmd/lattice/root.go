// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lattice",
		Short: "A live text-matching trigger engine",
		Long: `lattice watches the lines of a text session, matches them against a tree
of triggers and runs the matching triggers' Lua scripts and commands.

Run "lattice init" to create a config, then "lattice run" to start.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newInitCmd(),
		newDumpCmd(),
		newConvertCmd(),
		newCtlCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lattice %s\n", version)
		},
	}
}
