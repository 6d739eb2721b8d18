package gitsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitMessage(t *testing.T) {
	tests := []struct {
		name     string
		added    []string
		modified []string
		deleted  []string
		want     string
	}{
		{"single add", []string{"Wine A"}, nil, nil, "Add Wine A"},
		{"three adds", []string{"Wine A", "Wine B", "Wine C"}, nil, nil, "Add Wine A, Wine B, Wine C"},
		{"four adds", []string{"Wine A", "Wine B", "Wine C", "Wine D"}, nil, nil, "Add Wine A, Wine B and 2 more"},
		{"all groups", []string{"A"}, []string{"B", "C"}, []string{"wine-x"}, "Add A, Update B, C, Remove wine-x"},
		{"update and remove", nil, []string{"B"}, []string{"x", "y", "z", "w", "v"}, "Update B, Remove x, y and 3 more"},
		{"empty", nil, nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommitMessage(tt.added, tt.modified, tt.deleted))
		})
	}
}
