// Package github implements remote.Client on top of the GitHub REST Git Data API.
package github

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/imroc/req/v3"

	"github.com/cellarsync/cellarsync/internal/remote"
	"github.com/cellarsync/cellarsync/internal/version"
)

const (
	DefaultBaseURL = "https://api.github.com"

	HeaderAccept     = "Accept"
	HeaderAPIVersion = "X-GitHub-Api-Version"

	acceptJSON    = "application/vnd.github+json"
	apiVersion    = "2022-11-28"
	blobCacheSize = 512
)

var UserAgent = fmt.Sprintf("%s (%s; %s/%s)", version.UserAgent(), version.Revision, runtime.GOOS, runtime.GOARCH)

// Config is the configuration for the GitHub client
type Config struct {
	BaseURL    string        // BaseURL defaults to api.github.com
	Repo       string        // Repo is required, "owner/repo"
	Token      string        // Token is a personal access token
	Timeout    time.Duration // Timeout per request
	RetryCount int           // RetryCount for transport errors and 5xx responses
}

func (c *Config) Validate() error {
	if _, _, err := remote.SplitRepo(c.Repo); err != nil {
		return err
	}
	if c.Token == "" {
		return ErrNoToken
	}
	return nil
}

// Client talks to one GitHub repository.
type Client struct {
	client   *req.Client
	repoPath string
	blobs    *lru.Cache[string, []byte]
}

var _ remote.Client = (*Client)(nil)

// New creates a client bound to cfg.Repo
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	owner, repo, _ := remote.SplitRepo(cfg.Repo)

	blobs, err := lru.New[string, []byte](blobCacheSize)
	if err != nil {
		return nil, fmt.Errorf("blob cache: %w", err)
	}

	client := req.C().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderAccept, acceptJSON).
		SetCommonHeader(HeaderAPIVersion, apiVersion).
		SetCommonBearerAuthToken(cfg.Token).
		SetCommonRetryCount(cfg.RetryCount).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 5*time.Second).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			return err != nil || resp.StatusCode >= 500
		}).
		SetCommonErrorResult(&remote.APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		client:   client,
		repoPath: fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo)),
		blobs:    blobs,
	}, nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.client.GetClient().CloseIdleConnections()
}

func (c *Client) path(format string, args ...any) string {
	return c.repoPath + fmt.Sprintf(format, args...)
}
