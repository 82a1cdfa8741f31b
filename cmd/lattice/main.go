// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// lattice runs a trigger engine against a live text session and controls
// running instances through their HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
