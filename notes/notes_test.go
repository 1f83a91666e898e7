package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalle/vost/config"
	"github.com/mhalle/vost/reflog"
	"github.com/mhalle/vost/refs"
	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

func newNamespace(t *testing.T, name string) *Namespace {
	t.Helper()
	root := t.TempDir()
	objs, err := store.NewFilesystemStore(root + "/objects")
	require.NoError(t, err)
	refStore := store.NewRefStore(root)
	lock := refs.NewRepoLock(root)
	log := reflog.NewDB(refStore)
	cfg := &config.Config{User: config.User{Name: "Test", Email: "test@example.com"}}
	return Open(name, objs, refStore, lock, log, cfg, nil)
}

const commitHash = "111111111111111111111111111111111111111a"

func TestSetThenGet(t *testing.T) {
	ns := newNamespace(t, "commits")
	require.NoError(t, ns.Set(commitHash, "first note"))

	text, err := ns.Get(commitHash)
	require.NoError(t, err)
	assert.Equal(t, "first note", text)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ns := newNamespace(t, "commits")
	_, err := ns.Get(commitHash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetOverwriteThenDelete(t *testing.T) {
	ns := newNamespace(t, "commits")
	require.NoError(t, ns.Set(commitHash, "v1"))
	require.NoError(t, ns.Set(commitHash, "v2"))

	text, err := ns.Get(commitHash)
	require.NoError(t, err)
	assert.Equal(t, "v2", text)

	require.NoError(t, ns.Delete(commitHash))
	assert.False(t, ns.Has(commitHash))
}

func TestFanoutLayoutTolerance(t *testing.T) {
	ns := newNamespace(t, "commits")

	treeOID, err := tree.RebuildTree(ns.objs, store.OID{}, map[string]tree.WriteEntry{
		fanoutName(commitHash): tree.BlobData([]byte("fanout note"), 0),
	}, nil)
	require.NoError(t, err)
	identity := ns.cfg.Identity()
	sig := store.Signature{Name: identity.Name, Email: identity.Email}
	commitOID, err := ns.objs.WriteCommit(&store.Commit{Tree: treeOID, Author: sig, Committer: sig, Message: "external fanout write"})
	require.NoError(t, err)
	_, err = ns.refStore.WriteRef(ns.refName, commitOID, store.OID{}, false)
	require.NoError(t, err)

	text, err := ns.Get(commitHash)
	require.NoError(t, err)
	assert.Equal(t, "fanout note", text)

	require.NoError(t, ns.Set(commitHash, "replaced"))
	text, err = ns.Get(commitHash)
	require.NoError(t, err)
	assert.Equal(t, "replaced", text)
}

func TestBatchAccumulatesLastActionWins(t *testing.T) {
	ns := newNamespace(t, "commits")
	b := NewBatch(ns)
	b.Set(commitHash, "first")
	b.Set(commitHash, "second")
	b.Delete(commitHash)
	_, err := b.Commit("batch test")
	require.NoError(t, err)
	assert.False(t, ns.Has(commitHash))
}

func TestBatchEmptyCommitsNothing(t *testing.T) {
	ns := newNamespace(t, "commits")
	b := NewBatch(ns)
	tip, err := b.Commit("")
	require.NoError(t, err)
	assert.True(t, tip.IsZero())

	_, ok, err := ns.refStore.ReadRef(ns.refName)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListSorted(t *testing.T) {
	ns := newNamespace(t, "commits")
	b := NewBatch(ns)
	b.Set("333333333333333333333333333333333333333c", "c")
	b.Set("111111111111111111111111111111111111111a", "a")
	b.Set("222222222222222222222222222222222222222b", "b")
	_, err := b.Commit("")
	require.NoError(t, err)

	hashes, err := ns.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"111111111111111111111111111111111111111a",
		"222222222222222222222222222222222222222b",
		"333333333333333333333333333333333333333c",
	}, hashes)

	size, err := ns.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}
