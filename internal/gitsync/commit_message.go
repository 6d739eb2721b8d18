package gitsync

import (
	"fmt"
	"strings"
)

const maxListedNames = 3

// CommitMessage groups names as "Add ..., Update ..., Remove ...", omitting empty groups.
func CommitMessage(added []string, modified []string, deleted []string) string {
	var parts []string
	if len(added) > 0 {
		parts = append(parts, "Add "+formatNames(added))
	}
	if len(modified) > 0 {
		parts = append(parts, "Update "+formatNames(modified))
	}
	if len(deleted) > 0 {
		parts = append(parts, "Remove "+formatNames(deleted))
	}
	return strings.Join(parts, ", ")
}

// formatNames lists up to three names, otherwise the first two and a count of the rest.
func formatNames(names []string) string {
	if len(names) <= maxListedNames {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:2], ", "), len(names)-2)
}
