package gitsync

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/remote"
)

// localFile is a serialized bottle at its repository path.
type localFile struct {
	path    string
	name    string
	content []byte
}

// Changes is the difference between a snapshot and the managed part of a remote tree.
// Paths keep snapshot order for additions and modifications and tree order for deletions.
type Changes struct {
	Added    []string
	Modified []string
	Deleted  []string

	names map[string]string
}

func (c *Changes) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

func (c *Changes) Empty() bool {
	return c.Total() == 0
}

func (c *Changes) namesOf(paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		if n, ok := c.names[p]; ok {
			names = append(names, n)
		} else {
			names = append(names, cellar.NameFromPath(p))
		}
	}
	return names
}

// CommitMessage summarizes the change set, e.g. "Add Barolo 2016, Update Rioja 2019".
func (c *Changes) CommitMessage() string {
	return CommitMessage(c.namesOf(c.Added), c.namesOf(c.Modified), c.namesOf(c.Deleted))
}

// serializeSnapshot renders every bottle to its canonical file.
func serializeSnapshot(bottles []*cellar.Bottle) ([]localFile, error) {
	files := make([]localFile, 0, len(bottles))
	seen := make(map[string]string, len(bottles))
	for _, b := range bottles {
		data, err := cellar.Serialize(b)
		if err != nil {
			return nil, err
		}
		p := cellar.PathFor(b)
		if other, ok := seen[p]; ok {
			return nil, fmt.Errorf("bottles %s and %s map to the same path %s", other, b.ID, p)
		}
		seen[p] = b.ID
		files = append(files, localFile{path: p, name: b.DisplayName(), content: data})
	}
	return files, nil
}

// managedEntries keeps the blobs inside the managed namespace. Everything else
// in the tree is foreign and never appears in a diff.
func managedEntries(entries []remote.TreeEntry) []remote.TreeEntry {
	managed := make([]remote.TreeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type == remote.TypeBlob && strings.HasPrefix(e.Path, cellar.Namespace) {
			managed = append(managed, e)
		}
	}
	return managed
}

// diffSnapshot classifies local files against the remote managed entries.
// A file present on both sides is modified only when its git blob id differs.
func diffSnapshot(local []localFile, remoteEntries []remote.TreeEntry) *Changes {
	remoteSHA := make(map[string]string, len(remoteEntries))
	remotePaths := mapset.NewThreadUnsafeSet[string]()
	for _, e := range remoteEntries {
		remoteSHA[e.Path] = e.SHA
		remotePaths.Add(e.Path)
	}
	localPaths := mapset.NewThreadUnsafeSet[string]()

	changes := &Changes{names: make(map[string]string, len(local))}
	for _, f := range local {
		localPaths.Add(f.path)
		changes.names[f.path] = f.name

		if !remotePaths.Contains(f.path) {
			changes.Added = append(changes.Added, f.path)
			continue
		}
		if ContentHash(f.content) != remoteSHA[f.path] {
			changes.Modified = append(changes.Modified, f.path)
		}
	}

	for _, e := range remoteEntries {
		if !localPaths.Contains(e.Path) {
			changes.Deleted = append(changes.Deleted, e.Path)
		}
	}
	return changes
}

// treeChanges turns a change set into tree entries layered on the base tree.
func treeChanges(changes *Changes, local []localFile) []remote.TreeChange {
	content := make(map[string][]byte, len(local))
	for _, f := range local {
		content[f.path] = f.content
	}

	out := make([]remote.TreeChange, 0, changes.Total())
	for _, p := range changes.Added {
		out = append(out, remote.TreeChange{Path: p, Content: content[p]})
	}
	for _, p := range changes.Modified {
		out = append(out, remote.TreeChange{Path: p, Content: content[p]})
	}
	for _, p := range changes.Deleted {
		out = append(out, remote.TreeChange{Path: p, Delete: true})
	}
	return out
}
