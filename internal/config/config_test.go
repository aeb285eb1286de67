// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphvault/graphvault/internal/config"
	"github.com/graphvault/graphvault/pkg/errutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9200", cfg.API.Addr)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 256, cfg.Index.QueueSize)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
api:
  addr: 0.0.0.0:8080
database:
  url: postgres://localhost:5432/graphvault
log:
  format: text
  level: debug
index:
  queue_size: 1024
seed:
  path: /etc/graphvault/seed.yaml
`)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.API.Addr)
	assert.Equal(t, "postgres://localhost:5432/graphvault", cfg.Database.URL)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1024, cfg.Index.QueueSize)
	assert.Equal(t, "/etc/graphvault/seed.yaml", cfg.Seed.Path)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr, "unset values keep defaults")
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "api:\n  addr: 0.0.0.0:8080\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api.addr", "", "")
	require.NoError(t, flags.Set("api.addr", "127.0.0.1:7000"))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.API.Addr)
}

func TestLoadDatabaseURLFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host:5432/graphvault")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-host:5432/graphvault", cfg.Database.URL)

	t.Run("file value wins over environment", func(t *testing.T) {
		path := writeConfig(t, "database:\n  url: postgres://file-host:5432/graphvault\n")
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres://file-host:5432/graphvault", cfg.Database.URL)
	})
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
		errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "api: [unclosed"), nil)
		errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
	})

	t.Run("invalid log format", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "log:\n  format: xml\n"), nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		assert.Contains(t, err.Error(), `"xml"`)
	})
}
