// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckTLSConfig reports whether the server should listen with TLS. Both
// paths must be set together and point at existing files.
func CheckTLSConfig(certPath, keyPath string) (bool, error) {
	if certPath == "" && keyPath == "" {
		return false, nil
	}
	if certPath == "" || keyPath == "" {
		return false, fmt.Errorf("both tls_cert and tls_key must be specified (got cert=%q, key=%q)", certPath, keyPath)
	}

	for field, path := range map[string]string{"tls_cert": certPath, "tls_key": keyPath} {
		if _, err := os.Stat(expandPath(path)); err != nil {
			return false, fmt.Errorf("%s file not found: %s", field, path)
		}
	}
	return true, nil
}

// expandPath replaces a leading ~ with the home directory.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
