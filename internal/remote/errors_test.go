package remote

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Is(t *testing.T) {
	err := fmt.Errorf("get ref: %w", NewAPIError(http.StatusNotFound, "Not Found"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))

	err = NewAPIError(http.StatusUnauthorized, "Bad credentials")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "api error: 401 Bad credentials", err.Error())

	assert.Equal(t, 0, StatusCode(errors.New("boom")))
}

func TestSplitRepo(t *testing.T) {
	owner, repo, err := SplitRepo("alice/cellar")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, "cellar", repo)

	for _, bad := range []string{"", "alice", "alice/", "/cellar", "a/b/c"} {
		_, _, err := SplitRepo(bad)
		assert.ErrorIs(t, err, ErrInvalidRepo, bad)
	}
}
