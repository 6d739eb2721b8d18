// Package gitlocal implements remote.Client on a go-git repository, either held
// in memory or stored as a bare repository on disk.
package gitlocal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/cellarsync/cellarsync/internal/remote"
	"github.com/cellarsync/cellarsync/internal/utils"
)

const DefaultBranch = "main"

// Repo is a local git repository that behaves like a hosted one.
type Repo struct {
	name    string
	htmlURL string
	storer  storage.Storer
	now     func() time.Time

	// go-git storers are not safe for concurrent use
	mu    sync.Mutex
	pulls []*PullRequest
}

// PullRequest is a merge proposal recorded by the local repository.
type PullRequest struct {
	remote.PullRequest
	Title string
	Body  string
	Head  string
	Base  string
}

var _ remote.Client = (*Repo)(nil)

// NewMemory creates an empty in-memory repository whose HEAD points at branch.
func NewMemory(name string, branch string) (*Repo, error) {
	r, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("init memory repository: %w", err)
	}
	return newRepo(r.Storer, name, "memory://"+name, branch)
}

// Open opens the bare repository at dir, creating it when it does not exist.
func Open(dir string, branch string) (*Repo, error) {
	dir, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, err
	}

	r, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create repository directory: %w", err)
		}
		slog.Info("gitlocal init", "path", dir, "branch", branch)
		r, err = git.PlainInit(dir, true)
		if err != nil {
			return nil, fmt.Errorf("init repository %s: %w", dir, err)
		}
		return newRepo(r.Storer, filepath.Base(dir), "file://"+dir, branch)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return newRepo(r.Storer, filepath.Base(dir), "file://"+dir, "")
}

func newRepo(s storage.Storer, name string, htmlURL string, branch string) (*Repo, error) {
	if branch != "" {
		head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
		if err := s.SetReference(head); err != nil {
			return nil, fmt.Errorf("set HEAD: %w", err)
		}
	}
	return &Repo{
		name:    name,
		htmlURL: htmlURL,
		storer:  s,
		now:     time.Now,
	}, nil
}

func notFound(format string, args ...any) error {
	return remote.NewAPIError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

func unprocessable(format string, args ...any) error {
	return remote.NewAPIError(http.StatusUnprocessableEntity, fmt.Sprintf(format, args...))
}

func parseHash(sha string) (plumbing.Hash, error) {
	if !plumbing.IsHash(sha) {
		return plumbing.ZeroHash, unprocessable("invalid sha %q", sha)
	}
	return plumbing.NewHash(sha), nil
}

func (r *Repo) GetRepository(ctx context.Context) (*remote.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch := DefaultBranch
	head, err := r.storer.Reference(plumbing.HEAD)
	if err == nil && head.Type() == plumbing.SymbolicReference {
		branch = head.Target().Short()
	}

	return &remote.Repository{
		FullName:      r.name,
		DefaultBranch: branch,
		CanPush:       true,
		HTMLURL:       r.htmlURL,
	}, nil
}

func (r *Repo) GetRef(ctx context.Context, branch string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.storer.Reference(plumbing.NewBranchReferenceName(branch))
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("%w: heads/%s", remote.ErrRefNotFound, branch)
	}
	if err != nil {
		return "", fmt.Errorf("get ref heads/%s: %w", branch, err)
	}
	return ref.Hash().String(), nil
}

func (r *Repo) CreateRef(ctx context.Context, branch string, sha string) error {
	hash, err := parseHash(sha)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := object.GetCommit(r.storer, hash); err != nil {
		return unprocessable("object %s is not a commit", sha)
	}

	name := plumbing.NewBranchReferenceName(branch)
	if _, err := r.storer.Reference(name); err == nil {
		return unprocessable("reference %s already exists", name)
	}
	return r.storer.SetReference(plumbing.NewHashReference(name, hash))
}

// UpdateRef only fast-forwards; moving a branch to a commit that does not descend
// from its current head fails the way a non-forced hosted update does.
func (r *Repo) UpdateRef(ctx context.Context, branch string, sha string) error {
	hash, err := parseHash(sha)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := plumbing.NewBranchReferenceName(branch)
	old, err := r.storer.Reference(name)
	if err != nil {
		return notFound("reference %s does not exist", name)
	}

	next, err := object.GetCommit(r.storer, hash)
	if err != nil {
		return unprocessable("object %s is not a commit", sha)
	}
	prev, err := object.GetCommit(r.storer, old.Hash())
	if err != nil {
		return fmt.Errorf("read head of %s: %w", name, err)
	}
	ff, err := prev.IsAncestor(next)
	if err != nil {
		return fmt.Errorf("check ancestry: %w", err)
	}
	if !ff {
		return unprocessable("Update is not a fast forward")
	}

	return r.storer.CheckAndSetReference(plumbing.NewHashReference(name, hash), old)
}

func (r *Repo) GetCommit(ctx context.Context, sha string) (*remote.Commit, error) {
	hash, err := parseHash(sha)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := object.GetCommit(r.storer, hash)
	if err != nil {
		return nil, notFound("commit %s not found", sha)
	}

	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return &remote.Commit{
		SHA:     c.Hash.String(),
		TreeSHA: c.TreeHash.String(),
		Message: c.Message,
		Parents: parents,
	}, nil
}

func (r *Repo) CreateCommit(ctx context.Context, message string, tree string, parents []string) (string, error) {
	treeHash, err := parseHash(tree)
	if err != nil {
		return "", err
	}

	parentHashes := make([]plumbing.Hash, 0, len(parents))
	for _, p := range parents {
		h, err := parseHash(p)
		if err != nil {
			return "", err
		}
		parentHashes = append(parentHashes, h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := object.GetTree(r.storer, treeHash); err != nil {
		return "", unprocessable("tree %s not found", tree)
	}
	for _, p := range parentHashes {
		if _, err := object.GetCommit(r.storer, p); err != nil {
			return "", unprocessable("parent %s not found", p)
		}
	}

	hash, err := storeCommit(r.storer, parentHashes, treeHash, message, r.now())
	if err != nil {
		return "", fmt.Errorf("store commit: %w", err)
	}
	return hash.String(), nil
}

func (r *Repo) GetTree(ctx context.Context, sha string) ([]remote.TreeEntry, error) {
	hash, err := parseHash(sha)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tree, err := object.GetTree(r.storer, hash)
	if err != nil {
		return nil, notFound("tree %s not found", sha)
	}

	var entries []remote.TreeEntry
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk tree %s: %w", sha, err)
		}
		entryType := remote.TypeBlob
		if entry.Mode == filemode.Dir {
			entryType = remote.TypeTree
		} else if entry.Mode == filemode.Submodule {
			entryType = "commit"
		}
		entries = append(entries, remote.TreeEntry{
			Path: name,
			Mode: fmt.Sprintf("%06o", uint32(entry.Mode)),
			Type: entryType,
			SHA:  entry.Hash.String(),
		})
	}
	return entries, nil
}

func (r *Repo) CreateTree(ctx context.Context, base string, changes []remote.TreeChange) (string, error) {
	baseHash := plumbing.ZeroHash
	if base != "" {
		h, err := parseHash(base)
		if err != nil {
			return "", err
		}
		baseHash = h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hash, err := buildTree(r.storer, baseHash, changes)
	if err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}
	return hash.String(), nil
}

func (r *Repo) GetBlob(ctx context.Context, sha string) ([]byte, error) {
	hash, err := parseHash(sha)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	blob, err := object.GetBlob(r.storer, hash)
	if err != nil {
		return nil, notFound("blob %s not found", sha)
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", sha, err)
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

// CreatePullRequest records the proposal and pins its head under refs/pulls/<n>/head.
func (r *Repo) CreatePullRequest(ctx context.Context, params *remote.PullRequestParams) (*remote.PullRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.storer.Reference(plumbing.NewBranchReferenceName(params.Head))
	if err != nil {
		return nil, unprocessable("head branch %s does not exist", params.Head)
	}
	if _, err := r.storer.Reference(plumbing.NewBranchReferenceName(params.Base)); err != nil {
		return nil, unprocessable("base branch %s does not exist", params.Base)
	}

	number := len(r.pulls) + 1
	pin := plumbing.NewHashReference(plumbing.ReferenceName(fmt.Sprintf("refs/pulls/%d/head", number)), head.Hash())
	if err := r.storer.SetReference(pin); err != nil {
		return nil, fmt.Errorf("pin pull request head: %w", err)
	}

	pr := &PullRequest{
		PullRequest: remote.PullRequest{
			Number:  number,
			HTMLURL: fmt.Sprintf("%s/pull/%d", r.htmlURL, number),
		},
		Title: params.Title,
		Body:  params.Body,
		Head:  params.Head,
		Base:  params.Base,
	}
	r.pulls = append(r.pulls, pr)

	out := pr.PullRequest
	return &out, nil
}

// PullRequests lists the proposals opened against this repository.
func (r *Repo) PullRequests() []PullRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PullRequest, 0, len(r.pulls))
	for _, pr := range r.pulls {
		out = append(out, *pr)
	}
	return out
}
