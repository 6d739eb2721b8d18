package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := &Config{Repo: "alice/cellar", DataDir: t.TempDir()}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultBranch, cfg.Branch)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultControlPlaneAddr, cfg.ControlPlaneAddr)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.True(t, cfg.Configured())
	assert.False(t, cfg.IsLocal())
}

func TestConfig_Validate_EmptyRepoIsNotConfigured(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir()}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Configured())
}

func TestConfig_Validate_Repo(t *testing.T) {
	tests := []struct {
		repo    string
		wantErr bool
	}{
		{"alice/cellar", false},
		{"my-org/wine.cellar_2", false},
		{"alice", true},
		{"alice/cellar/extra", true},
		{"https://github.com/alice/cellar", true},
		{"alice/..", true},
		{"/cellar", true},
	}
	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			cfg := &Config{Repo: tt.repo, DataDir: t.TempDir()}
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRepo)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_LocalRepo(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Repo: "file://" + dir + "/../" + filepath.Base(dir) + "/remote.git", DataDir: dir}
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsLocal())
	assert.Equal(t, filepath.Join(dir, "remote.git"), cfg.LocalRepoPath())
}

func TestConfig_Validate_BaseURL(t *testing.T) {
	cfg := &Config{Repo: "alice/cellar", DataDir: t.TempDir(), BaseURL: "ftp://example.com"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base url")
}

func TestConfig_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := &Config{Repo: "alice/cellar", Token: "ghp_secret", DataDir: dir, AutoRetry: true}
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, "alice/cellar", loaded.Repo)
	assert.Equal(t, "ghp_secret", loaded.Token)
	assert.True(t, loaded.AutoRetry)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"Path"`)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
