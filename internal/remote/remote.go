// Package remote defines the git-hosting primitives the sync engine is built on.
//
// Implementations bind to a single repository. The engine only ever talks to the
// Git Data API shape (refs, commits, trees, blobs) plus pull requests, so the same
// engine can drive a hosted GitHub repository or a local go-git repository.
package remote

import "context"

const (
	ModeFile = "100644"

	TypeBlob = "blob"
	TypeTree = "tree"
)

// Repository is the subset of repository metadata the engine needs.
type Repository struct {
	FullName      string
	DefaultBranch string
	CanPush       bool
	HTMLURL       string
}

// Commit is a commit and the root tree it points at.
type Commit struct {
	SHA     string
	TreeSHA string
	Message string
	Parents []string
}

// TreeEntry is one entry of a recursively listed tree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
}

// TreeChange is applied on top of a base tree. A change either replaces the file
// at Path with Content or, when Delete is set, removes it.
type TreeChange struct {
	Path    string
	Content []byte
	Delete  bool
}

type PullRequestParams struct {
	Title string
	Body  string
	Head  string
	Base  string
}

type PullRequest struct {
	Number  int
	HTMLURL string
}

// Client is the git-hosting surface consumed by the sync engine.
type Client interface {
	GetRepository(ctx context.Context) (*Repository, error)

	// GetRef resolves a branch to its head commit. It returns an error matching
	// ErrRefNotFound when the branch does not exist or the repository is empty.
	GetRef(ctx context.Context, branch string) (string, error)
	CreateRef(ctx context.Context, branch string, sha string) error
	UpdateRef(ctx context.Context, branch string, sha string) error

	GetCommit(ctx context.Context, sha string) (*Commit, error)
	CreateCommit(ctx context.Context, message string, tree string, parents []string) (string, error)

	// GetTree lists the tree recursively.
	GetTree(ctx context.Context, sha string) ([]TreeEntry, error)
	// CreateTree builds a new tree from base plus changes. An empty base starts from an empty tree.
	CreateTree(ctx context.Context, base string, changes []TreeChange) (string, error)

	GetBlob(ctx context.Context, sha string) ([]byte, error)

	CreatePullRequest(ctx context.Context, params *PullRequestParams) (*PullRequest, error)
}
