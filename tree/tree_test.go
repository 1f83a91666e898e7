package tree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalle/vost/store"
)

func newStore(t *testing.T) store.ObjectStore {
	t.Helper()
	s, err := store.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRebuildTreeWriteThenRead(t *testing.T) {
	s := newStore(t)

	newOID, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"hello.txt": BlobData([]byte("Hello, world!"), 0),
	}, nil)
	require.NoError(t, err)

	got, err := ReadBlobAt(s, newOID, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", string(got))
}

func TestRebuildTreeStructuralSharing(t *testing.T) {
	s := newStore(t)

	base, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"a/x.txt": BlobData([]byte("x"), 0),
		"b/y.txt": BlobData([]byte("y"), 0),
	}, nil)
	require.NoError(t, err)

	aOID, err := resolveTree(s, base, "a")
	require.NoError(t, err)

	next, err := RebuildTree(s, base, map[string]WriteEntry{
		"b/z.txt": BlobData([]byte("z"), 0),
	}, nil)
	require.NoError(t, err)

	aOID2, err := resolveTree(s, next, "a")
	require.NoError(t, err)
	assert.Equal(t, aOID, aOID2, "subtree 'a' untouched by the write must keep the same OID")
}

func TestRebuildTreeIdempotentNoop(t *testing.T) {
	s := newStore(t)
	base, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"f.txt": BlobData([]byte("same"), 0),
	}, nil)
	require.NoError(t, err)

	again, err := RebuildTree(s, base, map[string]WriteEntry{
		"f.txt": BlobData([]byte("same"), 0),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, base, again)
}

func TestRebuildTreeRemovePrunesEmptyDir(t *testing.T) {
	s := newStore(t)
	base, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"dir/only.txt": BlobData([]byte("x"), 0),
	}, nil)
	require.NoError(t, err)

	next, err := RebuildTree(s, base, nil, map[string]struct{}{"dir/only.txt": {}})
	require.NoError(t, err)

	entries, err := ListTreeAt(s, next, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRebuildTreeBlobToTreePromotion(t *testing.T) {
	s := newStore(t)
	base, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"a": BlobData([]byte("i am a file"), 0),
	}, nil)
	require.NoError(t, err)

	next, err := RebuildTree(s, base, map[string]WriteEntry{
		"a/b": BlobData([]byte("now a directory"), 0),
	}, nil)
	require.NoError(t, err)

	st, err := StatAt(s, next, "a", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "directory", st.FileType)

	got, err := ReadBlobAt(s, next, "a/b")
	require.NoError(t, err)
	assert.Equal(t, "now a directory", string(got))
}

func TestRebuildTreeRemoveWinsOverWrite(t *testing.T) {
	s := newStore(t)
	next, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"f.txt": BlobData([]byte("x"), 0),
	}, map[string]struct{}{"f.txt": {}})
	require.NoError(t, err)
	assert.False(t, ExistsAt(s, next, "f.txt"))
}

func TestWalkTreePreOrder(t *testing.T) {
	s := newStore(t)
	root, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"a/x.txt": BlobData([]byte("1"), 0),
		"a/b/y":   BlobData([]byte("2"), 0),
		"c.txt":   BlobData([]byte("3"), 0),
	}, nil)
	require.NoError(t, err)

	entries, err := WalkTree(s, root, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "", entries[0].Path)
	assert.Equal(t, "a", entries[1].Path)
	assert.Equal(t, "a/b", entries[2].Path)
}

func TestGlobDotfileProtection(t *testing.T) {
	s := newStore(t)
	root, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		".hidden": BlobData([]byte("x"), 0),
		"visible": BlobData([]byte("y"), 0),
	}, nil)
	require.NoError(t, err)

	matches, err := Glob(s, root, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"visible"}, matches)

	matches, err = Glob(s, root, ".*")
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden"}, matches)
}

func TestGlobDoubleStar(t *testing.T) {
	s := newStore(t)
	root, err := RebuildTree(s, store.OID{}, map[string]WriteEntry{
		"a/b/c.go": BlobData([]byte("1"), 0),
		"d.go":     BlobData([]byte("2"), 0),
	}, nil)
	require.NoError(t, err)

	matches, err := Glob(s, root, "**/*.go")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/b/c.go", "d.go"}, matches)
}
