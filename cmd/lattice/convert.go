// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert between definitions files and binary profiles",
		Long: `Convert reads IN and writes OUT, choosing each format by extension:
.hjson, .json and .toml are definitions files, anything else is a binary
profile. Converting definitions to a profile produces a file that
"lattice run" can restore; converting a profile back gives editable
definitions.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			u, err := loadUnit(in)
			if err != nil {
				return err
			}
			if err := writeUnit(u, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d triggers (%d roots) to %s\n", u.Len(), len(u.Roots()), out)
			return nil
		},
	}
}
