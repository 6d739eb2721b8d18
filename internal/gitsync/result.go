package gitsync

import (
	"fmt"
)

// Status tags the outcome of an engine operation.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
)

// Result is returned by push and propose-merge. Expected failures are reported
// through Status and Message and never as a Go error.
type Result struct {
	Status  Status
	Message string

	// CommitSHA is the branch head after the operation. For a no-op push it is
	// the unchanged remote head.
	CommitSHA string
	// RemoteSHA is the diverged remote head when Status is StatusConflict.
	RemoteSHA string
	// Changes lists what a push wrote. Nil for no-op and failed pushes.
	Changes *Changes
	// PullRequestURL is set by a successful propose-merge.
	PullRequestURL string
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// FileFailure names a remote file that could not be turned into a bottle.
type FileFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (f FileFailure) String() string {
	return fmt.Sprintf("%s: %s", f.Path, f.Reason)
}

// ConflictCheck is the outcome of comparing the last synced head with the remote head.
type ConflictCheck struct {
	Conflict  bool
	RemoteSHA string
}

func errorResult(prefix string, err error) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf("%s: %s", prefix, err.Error())}
}

func plural(n int, singular string, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, pluralForm)
}
