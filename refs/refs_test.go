package refs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalle/vost/reflog"
	"github.com/mhalle/vost/store"
)

func newRig(t *testing.T) (*RepoLock, store.ObjectStore, *store.RefStore, *reflog.DB) {
	t.Helper()
	root := t.TempDir()
	objs, err := store.NewFilesystemStore(root + "/objects")
	require.NoError(t, err)
	refStore := store.NewRefStore(root)
	return NewRepoLock(root), objs, refStore, reflog.NewDB(refStore)
}

func committer() store.Signature {
	return store.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(1000, 0).UTC()}
}

func writeInitialCommit(t *testing.T, objs store.ObjectStore, msg string) store.OID {
	t.Helper()
	treeOID, err := objs.WriteTree(nil)
	require.NoError(t, err)
	c := &store.Commit{Tree: treeOID, Author: committer(), Committer: committer(), Message: msg}
	oid, err := objs.WriteCommit(c)
	require.NoError(t, err)
	return oid
}

func TestAdvanceFirstCommit(t *testing.T) {
	lock, objs, refStore, log := newRig(t)

	result, err := Advance(lock, objs, refStore, log, nil, "refs/heads/main", store.OID{}, committer(), func(confirmedTip store.OID) (store.OID, store.OID, string, error) {
		assert.True(t, confirmedTip.IsZero())
		oid := writeInitialCommit(t, objs, "initial")
		c, err := objs.ReadCommit(oid)
		require.NoError(t, err)
		return oid, c.Tree, "initial", nil
	})
	require.NoError(t, err)
	assert.False(t, result.NoOp)

	tip, ok, err := refStore.ReadRef("refs/heads/main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.Tip, tip)

	entries, err := log.Log("refs/heads/main")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "initial", entries[0].Message)
}

func TestAdvanceStaleSnapshot(t *testing.T) {
	lock, objs, refStore, log := newRig(t)

	oid1 := writeInitialCommit(t, objs, "initial")
	_, err := refStore.WriteRef("refs/heads/main", oid1, store.OID{}, false)
	require.NoError(t, err)

	_, err = Advance(lock, objs, refStore, log, nil, "refs/heads/main", store.OID{}, committer(), func(confirmedTip store.OID) (store.OID, store.OID, string, error) {
		t.Fatal("builder should not run when tip already moved")
		return store.OID{}, store.OID{}, "", nil
	})
	require.Error(t, err)
	var staleErr *StaleSnapshotError
	assert.ErrorAs(t, err, &staleErr)
}

func TestAdvanceNoOpWhenTreeUnchanged(t *testing.T) {
	lock, objs, refStore, log := newRig(t)
	oid1 := writeInitialCommit(t, objs, "initial")
	c1, err := objs.ReadCommit(oid1)
	require.NoError(t, err)
	_, err = refStore.WriteRef("refs/heads/main", oid1, store.OID{}, false)
	require.NoError(t, err)

	result, err := Advance(lock, objs, refStore, log, nil, "refs/heads/main", oid1, committer(), func(confirmedTip store.OID) (store.OID, store.OID, string, error) {
		return oid1, c1.Tree, "no-op", nil
	})
	require.NoError(t, err)
	assert.True(t, result.NoOp)

	entries, err := log.Log("refs/heads/main")
	require.NoError(t, err)
	assert.Empty(t, entries, "no reflog entry should be written for a no-op advance")
}
