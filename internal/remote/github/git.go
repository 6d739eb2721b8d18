package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cellarsync/cellarsync/internal/remote"
)

// GetRef resolves refs/heads/<branch> to a commit sha
func (c *Client) GetRef(ctx context.Context, branch string) (string, error) {
	var apiResp refResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(c.path("/git/ref/heads/%s", branch))

	if err := handleAPIError(resp, err, "get ref"); err != nil {
		if isRefMissing(err) {
			return "", fmt.Errorf("%w: heads/%s: %w", remote.ErrRefNotFound, branch, err)
		}
		return "", err
	}

	return apiResp.Object.SHA, nil
}

func (c *Client) CreateRef(ctx context.Context, branch string, sha string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&createRefRequest{Ref: "refs/heads/" + branch, SHA: sha}).
		Post(c.path("/git/refs"))

	return handleAPIError(resp, err, "create ref")
}

// UpdateRef moves the branch without force, so GitHub rejects a non fast-forward update
func (c *Client) UpdateRef(ctx context.Context, branch string, sha string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&updateRefRequest{SHA: sha, Force: false}).
		Patch(c.path("/git/refs/heads/%s", branch))

	return handleAPIError(resp, err, "update ref")
}

func (c *Client) GetCommit(ctx context.Context, sha string) (*remote.Commit, error) {
	var apiResp commitResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(c.path("/git/commits/%s", sha))

	if err := handleAPIError(resp, err, "get commit"); err != nil {
		return nil, err
	}

	parents := make([]string, 0, len(apiResp.Parents))
	for _, p := range apiResp.Parents {
		parents = append(parents, p.SHA)
	}

	return &remote.Commit{
		SHA:     apiResp.SHA,
		TreeSHA: apiResp.Tree.SHA,
		Message: apiResp.Message,
		Parents: parents,
	}, nil
}

func (c *Client) CreateCommit(ctx context.Context, message string, tree string, parents []string) (string, error) {
	if parents == nil {
		parents = []string{}
	}

	var apiResp commitResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&createCommitRequest{Message: message, Tree: tree, Parents: parents}).
		SetSuccessResult(&apiResp).
		Post(c.path("/git/commits"))

	if err := handleAPIError(resp, err, "create commit"); err != nil {
		return "", err
	}

	return apiResp.SHA, nil
}

// GetTree lists the tree recursively
func (c *Client) GetTree(ctx context.Context, sha string) ([]remote.TreeEntry, error) {
	var apiResp treeResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("recursive", "1").
		SetSuccessResult(&apiResp).
		Get(c.path("/git/trees/%s", sha))

	if err := handleAPIError(resp, err, "get tree"); err != nil {
		return nil, err
	}

	if apiResp.Truncated {
		slog.Warn("github tree listing truncated", "tree", sha, "entries", len(apiResp.Tree))
		return nil, fmt.Errorf("get tree %s: %w", sha, remote.ErrTreeTruncated)
	}

	entries := make([]remote.TreeEntry, 0, len(apiResp.Tree))
	for _, e := range apiResp.Tree {
		entries = append(entries, remote.TreeEntry{Path: e.Path, Mode: e.Mode, Type: e.Type, SHA: e.SHA})
	}
	return entries, nil
}

func (c *Client) CreateTree(ctx context.Context, base string, changes []remote.TreeChange) (string, error) {
	body := &createTreeRequest{
		BaseTree: base,
		Tree:     make([]map[string]any, 0, len(changes)),
	}
	for _, ch := range changes {
		entry := map[string]any{
			"path": ch.Path,
			"mode": remote.ModeFile,
			"type": remote.TypeBlob,
		}
		if ch.Delete {
			entry["sha"] = nil
		} else {
			entry["content"] = string(ch.Content)
		}
		body.Tree = append(body.Tree, entry)
	}

	var apiResp treeResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetSuccessResult(&apiResp).
		Post(c.path("/git/trees"))

	if err := handleAPIError(resp, err, "create tree"); err != nil {
		return "", err
	}

	return apiResp.SHA, nil
}

// GetBlob returns the decoded blob contents. Blobs are addressed by content so
// they are served from the cache once fetched.
func (c *Client) GetBlob(ctx context.Context, sha string) ([]byte, error) {
	if data, ok := c.blobs.Get(sha); ok {
		return data, nil
	}

	var apiResp blobResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(c.path("/git/blobs/%s", sha))

	if err := handleAPIError(resp, err, "get blob"); err != nil {
		return nil, err
	}

	var data []byte
	switch apiResp.Encoding {
	case "base64":
		data, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(apiResp.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decode blob %s: %w", sha, err)
		}
	case "utf-8", "":
		data = []byte(apiResp.Content)
	default:
		return nil, fmt.Errorf("decode blob %s: unsupported encoding %q", sha, apiResp.Encoding)
	}

	c.blobs.Add(sha, data)
	return data, nil
}
