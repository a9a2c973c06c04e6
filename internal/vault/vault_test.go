package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scaffolded(t *testing.T) *Vault {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, Scaffold(root))
	return New(root)
}

func TestCheckStructure(t *testing.T) {
	v := scaffolded(t)
	assert.NoError(t, v.CheckStructure())
}

func TestCheckStructure_MissingAreas(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Scaffold(root))
	require.NoError(t, os.Remove(filepath.Join(root, AreaApproved)))
	require.NoError(t, os.Remove(filepath.Join(root, AreaLogs)))

	err := New(root).CheckStructure()
	require.ErrorIs(t, err, ErrIncompleteVault)
	assert.Contains(t, err.Error(), AreaApproved)
	assert.Contains(t, err.Error(), AreaLogs)
}

func TestListDocs(t *testing.T) {
	v := scaffolded(t)

	require.NoError(t, v.WriteDoc(AreaNeedsAction, "b.md", []byte("b")))
	require.NoError(t, v.WriteDoc(AreaNeedsAction, "a.md", []byte("a")))
	// Non-markdown, hidden, and placeholder files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(v.Dir(AreaNeedsAction), "payload.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(v.Dir(AreaNeedsAction), ".gitkeep"), nil, 0o644))

	names, err := v.ListDocs(AreaNeedsAction)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, names)
}

func TestWriteDoc_ReadBack(t *testing.T) {
	v := scaffolded(t)

	require.NoError(t, v.WriteDoc(AreaPlans, "p.md", []byte("content")))

	data, err := v.ReadDoc(AreaPlans, "p.md")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(v.Dir(AreaPlans))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMoveDoc(t *testing.T) {
	v := scaffolded(t)
	require.NoError(t, v.WriteDoc(AreaPendingApproval, "req.md", []byte("r")))

	dest, err := v.MoveDoc(AreaPendingApproval, "req.md", AreaApproved, "")
	require.NoError(t, err)
	assert.Equal(t, "req.md", dest)

	assert.False(t, v.DocExists(AreaPendingApproval, "req.md"))
	assert.True(t, v.DocExists(AreaApproved, "req.md"))
}

func TestMoveDoc_WithPrefix(t *testing.T) {
	v := scaffolded(t)
	require.NoError(t, v.WriteDoc(AreaNeedsAction, "item.md", []byte("i")))

	dest, err := v.MoveDoc(AreaNeedsAction, "item.md", AreaDone, "20260115_093000_")
	require.NoError(t, err)
	assert.Equal(t, "20260115_093000_item.md", dest)
	assert.True(t, v.DocExists(AreaDone, dest))
}

func TestCopyIn(t *testing.T) {
	v := scaffolded(t)

	src := filepath.Join(t.TempDir(), "drop.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, v.CopyIn(src, AreaNeedsAction, "FILE_drop.txt"))
	data, err := os.ReadFile(filepath.Join(v.Dir(AreaNeedsAction), "FILE_drop.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
