package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/donorpulse/internal/config"
)

func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	// Verify the config template contains expected sections.
	require.Contains(t, configTemplate, "server:")
	require.Contains(t, configTemplate, "address:")
	require.Contains(t, configTemplate, "givebutter:")
	require.Contains(t, configTemplate, "api_key:")
	require.Contains(t, configTemplate, "page_size:")
	require.Contains(t, configTemplate, "sync:")
	require.Contains(t, configTemplate, "interval:")
	require.Contains(t, configTemplate, "top_donors:")
	require.Contains(t, configTemplate, "storage:")
	require.Contains(t, configTemplate, "backend:")
	require.Contains(t, configTemplate, "events:")
	require.Contains(t, configTemplate, "enabled:")
	require.Contains(t, configTemplate, "log_level:")
}

func TestConfigTemplateLoads(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv().

	t.Setenv("GIVEBUTTER_API_KEY", "test-key")

	path := filepath.Join(t.TempDir(), "donorpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configTemplate), 0o600))

	cfg, err := config.Load(path)

	require.NoError(t, err)
	require.Equal(t, "test-key", cfg.Givebutter.APIKey)
	require.Equal(t, config.BackendFile, cfg.Storage.Backend)
	require.False(t, cfg.Events.Enabled)
}

func TestRunInitCreatesConfig(t *testing.T) {
	// Cannot use t.Parallel() with t.Chdir().

	dir := t.TempDir()
	t.Chdir(dir)

	err := runInit()
	require.NoError(t, err)

	// Check config file was created with the template contents.
	data, err := os.ReadFile(filepath.Join(dir, "donorpulse.yaml"))
	require.NoError(t, err)
	require.Equal(t, configTemplate, string(data))

	// Check file permissions (0600).
	info, err := os.Stat(filepath.Join(dir, "donorpulse.yaml"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRunInitFailsIfConfigExists(t *testing.T) {
	// Cannot use t.Parallel() with t.Chdir().

	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "donorpulse.yaml"), []byte("existing config"), 0o600))

	err := runInit()

	require.Error(t, err)
	require.Contains(t, err.Error(), "config file already exists")
}
