// Package config holds the persisted sync settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cellarsync/cellarsync/internal/utils"
)

const (
	LocalRepoScheme = "file://"
	DefaultBranch   = "main"
	DefaultBaseURL  = "https://api.github.com"
	// DefaultControlPlaneAddr is where the daemon serves its HTTP API.
	DefaultControlPlaneAddr = "127.0.0.1:7941"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".cellarsync")
	DefaultConfigPath = filepath.Join(DefaultDataDir, "config.json")
	DefaultLogPath    = filepath.Join(DefaultDataDir, "logs", "cellarsync.log")
)

var (
	// ErrNoRepo means sync has not been set up. Sync operations treat it as a no-op.
	ErrNoRepo      = errors.New("no repository configured")
	ErrInvalidRepo = errors.New("repository must be owner/repo or file:///path")
)

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*/[A-Za-z0-9_.-]+$`)

type Config struct {
	// Repo is "owner/repo" on GitHub, or file:///path for a bare git repository on disk.
	Repo  string `json:"repo"`
	Token string `json:"token,omitempty"`
	// Branch is the default branch used when a file:// repository is created.
	Branch  string `json:"branch,omitempty"`
	DataDir string `json:"data_dir"`
	BaseURL string `json:"base_url,omitempty"`
	// AutoRetry enables exponential-backoff retries of failed pushes.
	AutoRetry         bool   `json:"auto_retry,omitempty"`
	ControlPlaneAddr  string `json:"control_plane_addr,omitempty"`
	ControlPlaneToken string `json:"control_plane_token,omitempty"`
	Path              string `json:"-"`
}

// Configured reports whether a repository has been set.
func (c *Config) Configured() bool {
	return c.Repo != ""
}

// IsLocal reports whether the repository lives on the local filesystem.
func (c *Config) IsLocal() bool {
	return strings.HasPrefix(c.Repo, LocalRepoScheme)
}

// LocalRepoPath is the filesystem path of a file:// repository.
func (c *Config) LocalRepoPath() string {
	return strings.TrimPrefix(c.Repo, LocalRepoScheme)
}

// DatabasePath is the sqlite file holding bottles and sync metadata.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "cellar.db")
}

// Validate fills defaults and normalizes paths. An empty Repo is valid and
// means sync is not configured.
func (c *Config) Validate() error {
	var err error

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ControlPlaneAddr == "" {
		c.ControlPlaneAddr = DefaultControlPlaneAddr
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base url %q", c.BaseURL)
	}

	c.Repo = strings.TrimSpace(c.Repo)
	switch {
	case c.Repo == "":
	case c.IsLocal():
		p, err := utils.ResolvePath(c.LocalRepoPath())
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidRepo, err)
		}
		c.Repo = LocalRepoScheme + p
	case !repoPattern.MatchString(c.Repo) || strings.Contains(c.Repo, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidRepo, c.Repo)
	}

	return nil
}

// Save writes the config as JSON. The file is private to the user since it holds the token.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, append(data, '\n'), 0o600)
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
