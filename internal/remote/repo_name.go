package remote

import (
	"fmt"
	"strings"
)

// SplitRepo parses "owner/repo".
func SplitRepo(fullName string) (owner string, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, fullName)
	}
	return parts[0], parts[1], nil
}
