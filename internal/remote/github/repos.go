package github

import (
	"context"

	"github.com/cellarsync/cellarsync/internal/remote"
)

// GetRepository returns the repository metadata including the caller's push permission
func (c *Client) GetRepository(ctx context.Context) (*remote.Repository, error) {
	var apiResp repoResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(c.repoPath)

	if err := handleAPIError(resp, err, "get repository"); err != nil {
		return nil, err
	}

	return &remote.Repository{
		FullName:      apiResp.FullName,
		DefaultBranch: apiResp.DefaultBranch,
		CanPush:       apiResp.Permissions.Push,
		HTMLURL:       apiResp.HTMLURL,
	}, nil
}

// CreatePullRequest opens a pull request from params.Head into params.Base
func (c *Client) CreatePullRequest(ctx context.Context, params *remote.PullRequestParams) (*remote.PullRequest, error) {
	var apiResp pullResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&createPullRequest{
			Title: params.Title,
			Body:  params.Body,
			Head:  params.Head,
			Base:  params.Base,
		}).
		SetSuccessResult(&apiResp).
		Post(c.path("/pulls"))

	if err := handleAPIError(resp, err, "create pull request"); err != nil {
		return nil, err
	}

	return &remote.PullRequest{Number: apiResp.Number, HTMLURL: apiResp.HTMLURL}, nil
}
