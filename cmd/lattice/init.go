// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const (
	configFile   = "lattice.hjson"
	triggersFile = "triggers.hjson"
)

func newInitCmd() *cobra.Command {
	var (
		dir      string
		defaults bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a lattice.hjson config and a starter triggers file",
		Long: `Create lattice.hjson in the target directory, asking for the session
name, the command to run and the API port. Press Enter to accept the
defaults shown in [brackets], or pass --yes to accept all of them.

A starter triggers.hjson is written alongside unless one exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), dir, defaults)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to create the files in")
	cmd.Flags().BoolVarP(&defaults, "yes", "y", false, "Accept all defaults without prompting")
	return cmd
}

type initAnswers struct {
	Name    string
	Command string
	Port    int
}

func runInit(in io.Reader, out io.Writer, dir string, defaults bool) error {
	cfgPath := filepath.Join(dir, configFile)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", cfgPath)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	ans := initAnswers{Name: filepath.Base(abs), Port: 4770}
	if !defaults {
		reader := bufio.NewReader(in)
		fmt.Fprintln(out, "lattice configuration setup")
		fmt.Fprintln(out, "Press Enter to accept defaults shown in [brackets].")
		fmt.Fprintln(out)

		ans.Name = prompt(reader, out, "Session name", ans.Name)
		ans.Command = prompt(reader, out, "Command to run (empty reads stdin)", "")
		if port, err := strconv.Atoi(prompt(reader, out, "API port", strconv.Itoa(ans.Port))); err == nil && port > 0 {
			ans.Port = port
		}
	}

	if err := os.WriteFile(cfgPath, []byte(generateConfig(ans)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(out, "Created %s\n", cfgPath)

	trigPath := filepath.Join(dir, triggersFile)
	if _, err := os.Stat(trigPath); os.IsNotExist(err) {
		if err := os.WriteFile(trigPath, []byte(starterTriggers), 0644); err != nil {
			return fmt.Errorf("failed to write triggers file: %w", err)
		}
		fmt.Fprintf(out, "Created %s\n", trigPath)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Edit %s\n", triggersFile)
	fmt.Fprintln(out, "  2. Run: lattice run")
	fmt.Fprintln(out, "  3. Inspect: lattice ctl triggers")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for a double-quoted HJSON value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(ans initAnswers) string {
	var sb strings.Builder

	sb.WriteString(`{
  // lattice configuration (HJSON: JSON with comments and relaxed syntax).

  server: {
    host: "127.0.0.1"
`)
	fmt.Fprintf(&sb, "    port: %d\n", ans.Port)
	sb.WriteString(`    // tls_cert: "~/.lattice/cert.pem"
    // tls_key: "~/.lattice/key.pem"
  }

  logging: {
    level: "info"     // debug, info, warn, error
    format: "console" // console or json
  }

  session: {
`)
	fmt.Fprintf(&sb, "    name: \"%s\"\n", escapeHJSONValue(ans.Name))
	if ans.Command != "" {
		fmt.Fprintf(&sb, "    command: \"%s\"\n", escapeHJSONValue(ans.Command))
	} else {
		sb.WriteString("    // Without a command, lines are read from stdin and commands go to stdout.\n")
		sb.WriteString("    // command: \"telnet example.org 4000\"\n")
	}
	sb.WriteString(`    strip_ansi: true
    encoding: "utf-8"
  }

  engine: {
    clear_attempts_on_fire: false
    regex_timeout: "100ms"
    default_condition_window: 1
  }

  triggers: {
`)
	fmt.Fprintf(&sb, "    file: \"%s\"\n", triggersFile)
	sb.WriteString(`    watch: true
    debounce: "250ms"
  }

  store: {
    path: "{{.Session.Name | slugify}}.db"
    keep: 20
  }

  // scripts: { init: ["init.lua"] }
}
`)
	return sb.String()
}

const starterTriggers = `[
  // Each trigger has patterns and a command or a Lua script. Kinds are
  // substring (default), regex, wildcard and exact.
  {
    name: greet
    patterns: [{ text: "waves at you" }]
    command: wave
  }
  {
    name: combat
    children: [
      {
        name: low-hp
        patterns: [{ text: "^HP: (\\d+)/(\\d+)", kind: "regex" }]
        script: "if tonumber(matches[1]) < tonumber(matches[2]) / 4 then send('flee') end"
      }
    ]
  }
]
`
