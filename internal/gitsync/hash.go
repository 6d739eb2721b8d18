package gitsync

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// ContentHash returns the git blob id of data: sha1("blob <len>\x00" + data).
// It matches the sha the remote reports for the same bytes in a tree listing.
func ContentHash(data []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, data).String()
}
