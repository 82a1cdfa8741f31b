// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/wingedpig/lattice/internal/trigger"
)

var (
	nameStyle     = lipgloss.NewStyle().Bold(true)
	inactiveStyle = lipgloss.NewStyle().Faint(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newDumpCmd() *cobra.Command {
	var showIDs bool

	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print a definitions file or binary profile as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := loadUnit(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTree(args[0], u.Info(), showIDs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show trigger ids")
	return cmd
}

// renderTree draws infos under a root labelled title.
func renderTree(title string, infos []trigger.Info, showIDs bool) string {
	t := tree.Root(title).Enumerator(tree.RoundedEnumerator)
	for _, info := range infos {
		t.Child(infoTree(info, showIDs))
	}
	return t.String()
}

func infoTree(info trigger.Info, showIDs bool) any {
	label := describe(info, showIDs)
	if len(info.Children) == 0 {
		return label
	}
	t := tree.Root(label)
	for _, c := range info.Children {
		t.Child(infoTree(c, showIDs))
	}
	return t
}

// describe renders one trigger as a single line: name, flags, patterns
// and action.
func describe(info trigger.Info, showIDs bool) string {
	var b strings.Builder

	name := info.Name
	if name == "" {
		name = "(unnamed)"
	}
	if showIDs {
		name = fmt.Sprintf("#%d %s", info.ID, name)
	}
	if info.Active {
		b.WriteString(nameStyle.Render(name))
	} else {
		b.WriteString(inactiveStyle.Render(name))
	}

	var flags []string
	if !info.Active {
		flags = append(flags, "inactive")
	}
	if info.Multiline {
		flags = append(flags, fmt.Sprintf("multiline/%d", info.ConditionWindow))
	}
	if info.Temporary {
		flags = append(flags, "temp")
	}
	if len(flags) > 0 {
		b.WriteString(" [" + strings.Join(flags, ",") + "]")
	}

	var parts []string
	for _, p := range info.Patterns {
		parts = append(parts, fmt.Sprintf("%s %q", p.Kind, p.Text))
	}
	if info.Command != "" {
		parts = append(parts, "=> "+info.Command)
	}
	if info.Script != "" {
		parts = append(parts, "lua: "+firstLine(info.Script))
	}
	if len(parts) > 0 {
		b.WriteString(" " + detailStyle.Render(strings.Join(parts, "  ")))
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
