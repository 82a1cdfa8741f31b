// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/wingedpig/lattice/internal/trigger"
	"github.com/wingedpig/lattice/pkg/client"
)

var labelStyle = lipgloss.NewStyle().PaddingRight(2)

// ctlOptions are shared by every ctl subcommand.
type ctlOptions struct {
	apiURL     string
	jsonOutput bool
}

func (o *ctlOptions) client() *client.Client {
	return client.New(o.apiURL)
}

// print writes v as JSON when --json is set and calls text otherwise.
func (o *ctlOptions) print(w io.Writer, v interface{}, text func()) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func newCtlCmd() *cobra.Command {
	opts := &ctlOptions{apiURL: "http://localhost:4770"}
	if env := os.Getenv("LATTICE_API"); env != "" {
		opts.apiURL = strings.TrimSuffix(env, "/")
	}

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running lattice instance",
		Long: `ctl talks to the HTTP API of a running "lattice run". The API address
defaults to $LATTICE_API, or http://localhost:4770.`,
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", opts.apiURL, "API base URL")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print JSON output")

	cmd.AddCommand(
		newCtlStatusCmd(opts),
		newCtlTriggersCmd(opts),
		newCtlByNameCmd(opts, "enable", "Enable every trigger with the given name", (*client.TriggerClient).Enable),
		newCtlByNameCmd(opts, "disable", "Disable every trigger with the given name", (*client.TriggerClient).Disable),
		newCtlByNameCmd(opts, "kill", "Remove every trigger with the given name", (*client.TriggerClient).Kill),
		newCtlCompileCmd(opts),
		newCtlTempCmd(opts),
		newCtlSendCmd(opts),
		newCtlFeedCmd(opts),
		newCtlEventsCmd(opts),
		newCtlSnapshotCmd(opts),
	)
	return cmd
}

func newCtlStatusCmd(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().Session.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, st, func() {
				state := "stopped"
				if st.Running {
					state = "running"
				}
				rows := [][]string{{"session", st.Name + " (" + state + ")"}}
				if !st.StartedAt.IsZero() {
					rows = append(rows, []string{"started", st.StartedAt.Format(time.RFC3339)})
				}
				rows = append(rows,
					[]string{"lines", strconv.FormatInt(st.Lines, 10)},
					[]string{"matched", strconv.FormatInt(st.Matched, 10)},
					[]string{"fired", strconv.FormatInt(st.Fired, 10)},
					[]string{"triggers", strconv.Itoa(st.Triggers)},
				)
				fmt.Fprintln(out, table.New().
					Border(lipgloss.HiddenBorder()).
					StyleFunc(func(row, col int) lipgloss.Style {
						if col == 0 {
							return labelStyle
						}
						return lipgloss.NewStyle()
					}).
					Rows(rows...).
					Render())
			})
		},
	}
}

func newCtlTriggersCmd(opts *ctlOptions) *cobra.Command {
	var showIDs bool
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Show the live trigger tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			list, err := c.Triggers.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, list, func() {
				infos := make([]trigger.Info, len(list))
				for i, t := range list {
					infos[i] = toInfo(t)
				}
				fmt.Fprintln(out, renderTree(c.BaseURL(), infos, showIDs))
			})
		},
	}
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show trigger ids")
	return cmd
}

// toInfo converts an API trigger to the engine's view for rendering.
func toInfo(t client.Trigger) trigger.Info {
	info := trigger.Info{
		ID:              t.ID,
		Name:            t.Name,
		Script:          t.Script,
		Command:         t.Command,
		Active:          t.Active,
		Folder:          t.Folder,
		Temporary:       t.Temporary,
		Multiline:       t.Multiline,
		ConditionWindow: t.ConditionWindow,
		LiveAttempts:    t.LiveAttempts,
		NeedsCompile:    t.NeedsCompile,
	}
	for _, p := range t.Patterns {
		info.Patterns = append(info.Patterns, trigger.PatternDefinition{Text: p.Text, Kind: p.Kind})
	}
	for _, c := range t.Children {
		info.Children = append(info.Children, toInfo(c))
	}
	return info
}

type byNameFunc func(*client.TriggerClient, context.Context, string) (*client.ByNameResult, error)

func newCtlByNameCmd(opts *ctlOptions, use, short string, fn byNameFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := fn(opts.client().Triggers, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, res, func() {
				fmt.Fprintf(out, "%s %q: %d matched\n", use, res.Name, res.Matched)
			})
		},
	}
}

func newCtlCompileCmd(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Compile pending triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			failed, err := opts.client().Triggers.Compile(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, map[string][]int64{"failed": failed}, func() {
				if len(failed) == 0 {
					fmt.Fprintln(out, "all triggers compiled")
					return
				}
				fmt.Fprintf(out, "%d triggers failed to compile: %v\n", len(failed), failed)
			})
		},
	}
}

func newCtlTempCmd(opts *ctlOptions) *cobra.Command {
	var req client.TempTrigger
	cmd := &cobra.Command{
		Use:   "temp SCRIPT",
		Short: "Create a temporary trigger",
		Long: `Create a temporary trigger running SCRIPT. With --pattern the trigger
fires on matching lines until killed. Without it, --after sets a line
count: the trigger fires once, --after lines after a delay of --delay
lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Script = args[0]
			if req.Pattern == "" && req.FireAfter <= 0 {
				return fmt.Errorf("either --pattern or --after is required")
			}
			id, err := opts.client().Triggers.Temp(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, map[string]int64{"id": id}, func() {
				fmt.Fprintf(out, "created temporary trigger %d\n", id)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.Pattern, "pattern", "p", "", "Pattern to match")
	f.StringVarP(&req.Kind, "kind", "k", "", "Pattern kind: substring, regex, wildcard or exact")
	f.IntVar(&req.StartDelay, "delay", 0, "Lines to wait before counting")
	f.IntVar(&req.FireAfter, "after", 0, "Lines to count before firing")
	return cmd
}

func newCtlSendCmd(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send COMMAND...",
		Short: "Send a command to the session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().Session.Send(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func newCtlFeedCmd(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "feed LINE...",
		Short: "Match lines as if the session had received them",
		Long:  `Each argument is one line. Use "-" to read lines from stdin.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if len(args) == 1 && args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			}
			return opts.client().Session.Feed(cmd.Context(), lines...)
		},
	}
}

func newCtlEventsCmd(opts *ctlOptions) *cobra.Command {
	var (
		types  []string
		limit  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent events, or follow new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			out := cmd.OutOrStdout()

			if follow {
				pattern := "*"
				if len(types) > 0 {
					pattern = types[0]
				}
				ch, err := c.Events.Stream(cmd.Context(), pattern)
				if err != nil {
					return err
				}
				for ev := range ch {
					if err := opts.print(out, ev, func() { printEvent(out, ev) }); err != nil {
						return err
					}
				}
				return nil
			}

			list, err := c.Events.List(cmd.Context(), &client.ListOptions{Types: types, Limit: limit})
			if err != nil {
				return err
			}
			return opts.print(out, list, func() {
				for _, ev := range list {
					printEvent(out, ev)
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&types, "type", "t", nil, "Event types or patterns, e.g. trigger.*")
	f.IntVarP(&limit, "limit", "n", 50, "Maximum events to show")
	f.BoolVarP(&follow, "follow", "f", false, "Stream new events until interrupted")
	return cmd
}

func printEvent(w io.Writer, ev client.Event) {
	payload, _ := json.Marshal(ev.Payload)
	fmt.Fprintf(w, "%s  %-22s %s\n", ev.Timestamp.Local().Format("15:04:05.000"), ev.Type, payload)
}

func newCtlSnapshotCmd(opts *ctlOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "List, save or restore snapshots of the trigger tree",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := opts.client().Snapshots.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, snaps, func() {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tPROFILE\tCREATED\tROOTS\tSIZE")
				for _, s := range snaps {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.Profile, s.CreatedAt.Local().Format(time.DateTime), s.Roots, s.Size)
				}
				tw.Flush()
			})
		},
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Save a snapshot of the live tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.client().Snapshots.Save(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, snap, func() {
				fmt.Fprintf(out, "saved snapshot %s (%d roots, %d bytes)\n", snap.ID, snap.Roots, snap.Size)
			})
		},
	}

	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Replace the live tree with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.client().Snapshots.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.print(out, snap, func() {
				fmt.Fprintf(out, "restored snapshot %s (%d roots)\n", snap.ID, snap.Roots)
			})
		},
	}

	cmd.AddCommand(list, save, restore)
	return cmd
}
