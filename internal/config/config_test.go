package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8008", cfg.Matrix.HomeserverURL)
	assert.Equal(t, "https://localhost:8000/vcon", cfg.Export.URL)
	assert.Equal(t, Duration(time.Hour), cfg.Export.Interval)
	assert.Equal(t, Duration(time.Hour), cfg.Export.Retention)
	assert.Equal(t, "ietf.org", cfg.Identity.Domain)
	assert.Equal(t, "agent", cfg.Identity.DefaultRole)
	assert.Equal(t, 10, cfg.Matrix.InitialSyncLimit)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
matrix:
  homeserverUrl: https://matrix.example.org
  userId: "@scribe:example.org"
export:
  url: https://conserver.example.org/vcon
  interval: 30m
  retention: 24h
identity:
  domain: example.org
  defaultRole: customer
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://matrix.example.org", cfg.Matrix.HomeserverURL)
	assert.Equal(t, "@scribe:example.org", cfg.Matrix.UserID)
	assert.Equal(t, "https://conserver.example.org/vcon", cfg.Export.URL)
	assert.Equal(t, Duration(30*time.Minute), cfg.Export.Interval)
	assert.Equal(t, Duration(24*time.Hour), cfg.Export.Retention)
	assert.Equal(t, "example.org", cfg.Identity.Domain)
	assert.Equal(t, "customer", cfg.Identity.DefaultRole)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Matrix.InitialSyncLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "matrix: [not a map")

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VCONSCRIBE_MATRIX_URL", "http://other:8008")
	t.Setenv("VCONSCRIBE_CONSERVER_URL", "http://other:8000/vcon")
	t.Setenv("VCONSCRIBE_SWEEP_INTERVAL", "15m")
	t.Setenv("VCONSCRIBE_RETENTION", "45m")
	t.Setenv("VCONSCRIBE_DEFAULT_ROLE", "customer")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://other:8008", cfg.Matrix.HomeserverURL)
	assert.Equal(t, "http://other:8000/vcon", cfg.Export.URL)
	assert.Equal(t, Duration(15*time.Minute), cfg.Export.Interval)
	assert.Equal(t, Duration(45*time.Minute), cfg.Export.Retention)
	assert.Equal(t, "customer", cfg.Identity.DefaultRole)
}

func TestLoad_ExpandsSensitiveFields(t *testing.T) {
	t.Setenv("TEST_SYNAPSE_TOKEN", "s3cret")
	path := writeConfig(t, `
matrix:
  accessToken: ${TEST_SYNAPSE_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Matrix.AccessToken)
}

func TestValidate_OK(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Issues(t *testing.T) {
	cfg := Defaults()
	cfg.Matrix.UserID = "recorder"
	cfg.Export.URL = ""
	cfg.Gateway.Port = 99999
	cfg.Logging.Level = "verbose"

	issues := Validate(&cfg)
	require.Len(t, issues, 4)

	paths := make([]string, 0, len(issues))
	for _, issue := range issues {
		paths = append(paths, issue.Path)
	}
	assert.Contains(t, paths, "matrix.userId")
	assert.Contains(t, paths, "export.url")
	assert.Contains(t, paths, "gateway.port")
	assert.Contains(t, paths, "logging.level")
}

func TestResolvePaths_HomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("VCONSCRIBE_HOME", base)

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(base, "vcons"), paths.Vcons)

	require.NoError(t, paths.EnsureDirs())
	info, err := os.Stat(paths.Vcons)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
