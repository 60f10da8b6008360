package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkbridge/apkbridge/internal/protocol"
)

func TestResolveInsideHappyPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "res", "values", "strings.xml"), "<resources/>")

	resolved, err := ResolveInside(root, filepath.Join("res", "values", "strings.xml"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
	_, err = os.Stat(resolved)
	require.NoError(t, err)
}

func TestResolveInsideRejectsTraversal(t *testing.T) {
	root := t.TempDir()

	// The target's existence is irrelevant; the escape itself is the error.
	_, err := ResolveInside(root, "../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, protocol.KindPathTraversal, protocol.KindOf(err))
}

func TestResolveInsideRejectsAbsolute(t *testing.T) {
	root := t.TempDir()

	_, err := ResolveInside(root, "/etc/passwd")
	require.Error(t, err)
	assert.Equal(t, protocol.KindPathTraversal, protocol.KindOf(err))
}

func TestResolveInsideRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "keys")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "sneaky")))

	_, err := ResolveInside(root, "sneaky")
	require.Error(t, err)
	assert.Equal(t, protocol.KindPathTraversal, protocol.KindOf(err))
}

func TestResolveInsideAllowsNewFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "res", "values"), 0o755))

	resolved, err := ResolveInside(root, filepath.Join("res", "values", "new.xml"))
	require.NoError(t, err)
	assert.True(t, within(mustCanonical(t, root), resolved))
}

func TestResolveInsideMissingRoot(t *testing.T) {
	_, err := ResolveInside(filepath.Join(t.TempDir(), "nope"), "a.txt")
	require.Error(t, err)
	assert.Equal(t, protocol.KindPathNotFound, protocol.KindOf(err))
}

func mustCanonical(t *testing.T, path string) string {
	t.Helper()
	resolved, err := canonicalize(path)
	require.NoError(t, err)
	return resolved
}
