package devenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathWithStateDirEnv(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state")
	t.Setenv(StateDirEnv, state)

	resolved, err := ResolvePath("<dev_state>/resty/mpob")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(state, "resty", "mpob"), resolved)

	info, err := os.Stat(state)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	resolved, err = ResolvePath("<dev_state>")
	require.NoError(t, err)
	require.Equal(t, state, resolved)
}

func TestResolvePathLeavesOtherPaths(t *testing.T) {
	for _, path := range []string{"/var/lib/palmstat.db", "relative/dir", ":memory:"} {
		resolved, err := ResolvePath(path)
		require.NoError(t, err)
		require.Equal(t, path, resolved)
	}
}

func TestWorkspaceRoot(t *testing.T) {
	root, err := GetWorkspaceRoot()
	require.NoError(t, err)
	require.True(t, declaresModule(root))
	require.False(t, declaresModule(t.TempDir()))
}
