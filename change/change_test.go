package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

func newStore(t *testing.T) store.ObjectStore {
	t.Helper()
	s, err := store.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestDetectAddUpdateDelete(t *testing.T) {
	s := newStore(t)

	base, err := tree.RebuildTree(s, store.OID{}, map[string]tree.WriteEntry{
		"a.txt": tree.BlobData([]byte("one"), 0),
		"b.txt": tree.BlobData([]byte("two"), 0),
	}, nil)
	require.NoError(t, err)

	next, err := tree.RebuildTree(s, base, map[string]tree.WriteEntry{
		"a.txt": tree.BlobData([]byte("one-changed"), 0),
		"c.txt": tree.BlobData([]byte("three"), 0),
	}, map[string]struct{}{"b.txt": {}})
	require.NoError(t, err)

	r, err := Detect(s, base, next, "")
	require.NoError(t, err)
	require.Len(t, r.Add, 1)
	assert.Equal(t, "c.txt", r.Add[0].Path)
	require.Len(t, r.Update, 1)
	assert.Equal(t, "a.txt", r.Update[0].Path)
	require.Len(t, r.Delete, 1)
	assert.Equal(t, "b.txt", r.Delete[0].Path)
}

func TestDetectNoChanges(t *testing.T) {
	s := newStore(t)
	base, err := tree.RebuildTree(s, store.OID{}, map[string]tree.WriteEntry{
		"a.txt": tree.BlobData([]byte("one"), 0),
	}, nil)
	require.NoError(t, err)

	r, err := Detect(s, base, base, "")
	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.Equal(t, "No changes", AutoMessage(r))
}

func TestDetectShortCircuitsUnchangedSubtree(t *testing.T) {
	s := newStore(t)
	base, err := tree.RebuildTree(s, store.OID{}, map[string]tree.WriteEntry{
		"dir/x.txt": tree.BlobData([]byte("x"), 0),
		"top.txt":   tree.BlobData([]byte("top"), 0),
	}, nil)
	require.NoError(t, err)

	next, err := tree.RebuildTree(s, base, map[string]tree.WriteEntry{
		"top.txt": tree.BlobData([]byte("top-changed"), 0),
	}, nil)
	require.NoError(t, err)

	r, err := Detect(s, base, next, "")
	require.NoError(t, err)
	require.Len(t, r.Update, 1)
	assert.Equal(t, "top.txt", r.Update[0].Path)
}

func TestDetectRecursesIntoDeletedSubtree(t *testing.T) {
	s := newStore(t)
	base, err := tree.RebuildTree(s, store.OID{}, map[string]tree.WriteEntry{
		"dir/a.txt": tree.BlobData([]byte("a"), 0),
		"dir/b.txt": tree.BlobData([]byte("b"), 0),
	}, nil)
	require.NoError(t, err)

	next, err := tree.RebuildTree(s, base, nil, map[string]struct{}{
		"dir/a.txt": {},
		"dir/b.txt": {},
	})
	require.NoError(t, err)

	r, err := Detect(s, base, next, "")
	require.NoError(t, err)
	assert.Len(t, r.Delete, 2)
}

func TestAutoMessageSingleChangeSuffixes(t *testing.T) {
	r := &Report{Add: []FileEntry{{Path: "bin/run", Mode: store.ModeExecutable}}}
	assert.Equal(t, "+ bin/run (executable)", AutoMessage(r))

	r = &Report{Delete: []FileEntry{{Path: "link", Mode: store.ModeSymlink}}}
	assert.Equal(t, "- link (link)", AutoMessage(r))
}

func TestAutoMessageBatch(t *testing.T) {
	r := &Report{
		Add:    []FileEntry{{Path: "a"}, {Path: "b"}},
		Update: []FileEntry{{Path: "c"}},
		Delete: []FileEntry{{Path: "d"}},
	}
	assert.Equal(t, "Batch: +2 ~1 -1", AutoMessage(r))

	r.Operation = "sync_in"
	assert.Equal(t, "Batch sync_in: +2 ~1 -1", AutoMessage(r))
}

func TestActionsSortedByPath(t *testing.T) {
	r := &Report{
		Add:    []FileEntry{{Path: "z.txt"}},
		Update: []FileEntry{{Path: "a.txt"}},
		Delete: []FileEntry{{Path: "m.txt"}},
	}
	actions := r.Actions()
	require.Len(t, actions, 3)
	assert.Equal(t, "a.txt", actions[0].Path)
	assert.Equal(t, "m.txt", actions[1].Path)
	assert.Equal(t, "z.txt", actions[2].Path)
}
