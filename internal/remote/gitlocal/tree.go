package gitlocal

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/cellarsync/cellarsync/internal/remote"
)

const (
	authorName  = "CellarSync"
	authorEmail = "sync@cellarsync.local"
)

// fileEntry is a non-directory entry of a flattened tree.
type fileEntry struct {
	mode filemode.FileMode
	hash plumbing.Hash
}

// flattenTree reads every non-directory entry below root, keyed by full path.
// Executables, symlinks and submodules keep their modes.
func flattenTree(store storer.EncodedObjectStorer, root plumbing.Hash) (map[string]fileEntry, error) {
	files := make(map[string]fileEntry)
	if root.IsZero() {
		return files, nil
	}

	tree, err := object.GetTree(store, root)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", root, err)
	}

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("walk tree %s: %w", root, err)
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		files[name] = fileEntry{mode: entry.Mode, hash: entry.Hash}
	}
	return files, nil
}

// buildTree applies changes on top of base and stores the resulting trees.
func buildTree(store storer.EncodedObjectStorer, base plumbing.Hash, changes []remote.TreeChange) (plumbing.Hash, error) {
	files, err := flattenTree(store, base)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, ch := range changes {
		p := strings.Trim(ch.Path, "/")
		if p == "" {
			return plumbing.ZeroHash, fmt.Errorf("invalid tree path %q", ch.Path)
		}
		if ch.Delete {
			delete(files, p)
			continue
		}
		hash, err := storeBlob(store, ch.Content)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("store blob %s: %w", p, err)
		}
		files[p] = fileEntry{mode: filemode.Regular, hash: hash}
	}

	trees := map[string]*object.Tree{"": {}}
	for p, f := range files {
		dir, name := split(p)
		tree := ensureTree(trees, dir)
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: f.mode, Hash: f.hash})
	}

	return storeTrees(store, trees, "")
}

func storeBlob(store storer.EncodedObjectStorer, data []byte) (plumbing.Hash, error) {
	eo := store.NewEncodedObject()
	eo.SetType(plumbing.BlobObject)
	eo.SetSize(int64(len(data)))

	w, err := eo.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	_, err = w.Write(data)
	w.Close()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return store.SetEncodedObject(eo)
}

func split(p string) (string, string) {
	i := strings.LastIndex(p, "/")
	if i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

// ensureTree returns the tree for dir, creating it and its ancestors as directory
// entries with a zero hash that storeTrees fills in.
func ensureTree(trees map[string]*object.Tree, dir string) *object.Tree {
	if tree, ok := trees[dir]; ok {
		return tree
	}

	parentDir, name := split(dir)
	parent := ensureTree(trees, parentDir)
	parent.Entries = append(parent.Entries, object.TreeEntry{Name: name, Mode: filemode.Dir})

	tree := &object.Tree{}
	trees[dir] = tree
	return tree
}

func storeTrees(store storer.EncodedObjectStorer, trees map[string]*object.Tree, treePath string) (plumbing.Hash, error) {
	tree, ok := trees[treePath]
	if !ok {
		return plumbing.ZeroHash, fmt.Errorf("failed to find a tree %q", treePath)
	}

	entries := tree.Entries
	sort.Slice(entries, func(i, j int) bool {
		return entrySortKey(&entries[i]) < entrySortKey(&entries[j])
	})

	for i := range entries {
		e := &entries[i]
		if e.Mode != filemode.Dir || !e.Hash.IsZero() {
			continue
		}
		hash, err := storeTrees(store, trees, path.Join(treePath, e.Name))
		if err != nil {
			return plumbing.ZeroHash, err
		}
		e.Hash = hash
	}

	eo := store.NewEncodedObject()
	if err := tree.Encode(eo); err != nil {
		return plumbing.ZeroHash, err
	}
	return store.SetEncodedObject(eo)
}

// Git sorts tree entries as though directories have '/' appended to them.
func entrySortKey(e *object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

func storeCommit(store storer.EncodedObjectStorer, parents []plumbing.Hash, tree plumbing.Hash, message string, now time.Time) (plumbing.Hash, error) {
	sig := object.Signature{Name: authorName, Email: authorEmail, When: now}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	eo := store.NewEncodedObject()
	if err := commit.Encode(eo); err != nil {
		return plumbing.ZeroHash, err
	}
	return store.SetEncodedObject(eo)
}
