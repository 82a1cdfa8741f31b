// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTLSConfig(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0600))
	require.NoError(t, os.WriteFile(key, []byte("key"), 0600))

	enabled, err := CheckTLSConfig("", "")
	assert.NoError(t, err)
	assert.False(t, enabled)

	enabled, err = CheckTLSConfig(cert, key)
	assert.NoError(t, err)
	assert.True(t, enabled)

	_, err = CheckTLSConfig(cert, "")
	assert.ErrorContains(t, err, "both tls_cert and tls_key")

	_, err = CheckTLSConfig(cert, filepath.Join(dir, "missing.pem"))
	assert.ErrorContains(t, err, "tls_key file not found")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "certs/a.pem"), expandPath("~/certs/a.pem"))
	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, "/etc/a.pem", expandPath("/etc/a.pem"))
	assert.Equal(t, "~other/a.pem", expandPath("~other/a.pem"))
}
