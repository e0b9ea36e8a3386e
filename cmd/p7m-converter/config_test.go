// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())
	initConfig()

	cfg, err := loadConfig(convertCmd)
	require.NoError(t, err)
	assert.Equal(t, "OpenSSL", cfg.Tool.Name)
	assert.Equal(t, ".p7m", cfg.Convert.InputSuffix)
	assert.Equal(t, ".pdf", cfg.Convert.OutputSuffix)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, []string{"/verysilent", "/norestart"}, cfg.Installer.Args)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, cfg.Log.Dir, filepath.Dir(cfg.History.Path))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())
	logDir := filepath.Join(t.TempDir(), "logs")
	t.Setenv("P7M_CONVERTER_LOG_DIR", logDir)
	t.Setenv("P7M_CONVERTER_TOOL_PATH", "/opt/openssl/bin/openssl")
	t.Setenv("P7M_CONVERTER_POLL_INTERVAL", "250ms")
	initConfig()

	cfg, err := loadConfig(convertCmd)
	require.NoError(t, err)
	assert.Equal(t, logDir, cfg.Log.Dir)
	assert.Equal(t, "/opt/openssl/bin/openssl", cfg.Tool.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, filepath.Join(logDir, "history.db"), cfg.History.Path, "history follows the log dir")
}

func TestLoadConfig_File(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p7m-converter.yaml"), []byte(`
installer:
  sha256: abc123
  args: ["/silent"]
convert:
  output_suffix: .PDF
history:
  enabled: false
  path: /var/tmp/runs.db
`), 0o644))
	initConfig()

	cfg, err := loadConfig(convertCmd)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Installer.SHA256)
	assert.Equal(t, []string{"/silent"}, cfg.Installer.Args)
	assert.Equal(t, ".PDF", cfg.Convert.OutputSuffix)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "/var/tmp/runs.db", cfg.History.Path)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
