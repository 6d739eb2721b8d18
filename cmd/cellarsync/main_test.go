package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarsync/cellarsync/internal/config"
)

func newConfigCmd(t *testing.T, path string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", config.DefaultConfigPath, "")
	if path != "" {
		require.NoError(t, cmd.Flags().Set("config", path))
	}
	return cmd
}

func TestLoadConfigJSON(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	dataDir := filepath.Join(tmp, "data")
	require.NoError(t, os.WriteFile(path, []byte(`{
	"repo": "alice/cellar",
	"token": "ghp_secret",
	"data_dir": "`+filepath.ToSlash(dataDir)+`",
	"auto_retry": true
}`), 0o600))

	cfg, err := loadConfig(newConfigCmd(t, path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "alice/cellar", cfg.Repo)
	assert.Equal(t, "ghp_secret", cfg.Token)
	assert.Equal(t, filepath.Clean(dataDir), cfg.DataDir)
	assert.True(t, cfg.AutoRetry)
	assert.Equal(t, config.DefaultBranch, cfg.Branch)
	assert.Equal(t, config.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, config.DefaultControlPlaneAddr, cfg.ControlPlaneAddr)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"repo": "alice/cellar", "token": "from-file"}`), 0o600))

	t.Setenv("CELLARSYNC_TOKEN", "from-env")
	t.Setenv("CELLARSYNC_DATA_DIR", filepath.Join(tmp, "env-data"))

	cfg, err := loadConfig(newConfigCmd(t, path))
	require.NoError(t, err)
	assert.Equal(t, "alice/cellar", cfg.Repo)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, filepath.Join(tmp, "env-data"), cfg.DataDir)
}

func TestLoadConfigMissingFileIsUnconfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	cfg, err := loadConfig(newConfigCmd(t, path))
	require.NoError(t, err)
	assert.False(t, cfg.Configured())
	assert.Equal(t, config.DefaultDataDir, cfg.DataDir)
}

func TestLoadConfigInvalidRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"repo": "not a repo"}`), 0o600))

	_, err := loadConfig(newConfigCmd(t, path))
	assert.ErrorIs(t, err, config.ErrInvalidRepo)
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("CELLARSYNC_CONFIG_PATH", "")
		assert.Equal(t, config.DefaultConfigPath, resolveConfigPath(newConfigCmd(t, "")))
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("CELLARSYNC_CONFIG_PATH", "/tmp/env.json")
		assert.Equal(t, "/tmp/env.json", resolveConfigPath(newConfigCmd(t, "")))
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("CELLARSYNC_CONFIG_PATH", "/tmp/env.json")
		assert.Equal(t, "/tmp/flag.json", resolveConfigPath(newConfigCmd(t, "/tmp/flag.json")))
	})
}
