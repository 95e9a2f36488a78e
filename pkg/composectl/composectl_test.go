package composectl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepoDirName(t *testing.T) {
	require.Equal(t, "myrepo", repoDirName("https://github.com/org/myrepo.git"))
	require.Equal(t, "myrepo", repoDirName("https://github.com/org/myrepo"))
}

func TestWithToken(t *testing.T) {
	got := withToken("https://github.com/org/myrepo.git", "tok123")
	require.Equal(t, "https://tok123@github.com/org/myrepo.git", got)
}

func TestWithToken_NonHTTPSUnchanged(t *testing.T) {
	got := withToken("git@github.com:org/myrepo.git", "tok123")
	require.Equal(t, "git@github.com:org/myrepo.git", got)
}
