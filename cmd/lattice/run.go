// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/wingedpig/lattice/internal/app"
)

func newRunCmd() *cobra.Command {
	var opts app.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the session, the trigger engine and the control API",
		Long: `Start the configured session command under a pty, or read lines from
stdin when no command is configured, and match every line against the
trigger tree until the session ends or the process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Version = version
			a, err := app.New(opts)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to config file (default: auto-detect)")
	f.StringVar(&opts.Host, "host", "", "HTTP server host (overrides config)")
	f.IntVar(&opts.Port, "port", 0, "HTTP server port (overrides config)")
	f.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	return cmd
}
