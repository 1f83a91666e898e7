package repo

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalle/vost/store"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	root := t.TempDir()
	tick := time.Unix(1_700_000_000, 0).UTC()
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	r, err := Init(root, "main", WithClock(clock))
	require.NoError(t, err)
	return r
}

func TestBranchCreatesInitialCommit(t *testing.T) {
	r := newRepo(t)
	s, err := r.Branch("main")
	require.NoError(t, err)
	assert.True(t, s.writable)
	assert.False(t, s.commitOID.IsZero())

	again, err := r.Branch("main")
	require.NoError(t, err)
	assert.Equal(t, s.commitOID, again.commitOID)
}

func TestWriteThenRead(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)

	s1, err := s0.WriteText("hello.txt", "hi", "")
	require.NoError(t, err)
	require.Len(t, s1.Changes().Add, 1)
	assert.Equal(t, "hello.txt", s1.Changes().Add[0].Path)

	text, err := s1.ReadText("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	assert.False(t, s0.Exists("hello.txt"), "base snapshot must not see later writes")
	assert.True(t, s1.Exists("hello.txt"))
}

func TestBatchLastWriteWins(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)

	b, err := s0.Batch("two writes", "")
	require.NoError(t, err)
	require.NoError(t, b.WriteText("a.txt", "first"))
	require.NoError(t, b.WriteText("a.txt", "second"))
	s1, err := b.Commit()
	require.NoError(t, err)

	text, err := s1.ReadText("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestBatchRemoveAfterWriteWins(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)

	b, err := s0.Batch("", "")
	require.NoError(t, err)
	require.NoError(t, b.WriteText("a.txt", "x"))
	require.NoError(t, b.Remove("a.txt"))
	s1, err := b.Commit()
	require.NoError(t, err)
	assert.False(t, s1.Exists("a.txt"))
}

func TestBatchClosedAfterCommit(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)

	b, err := s0.Batch("", "")
	require.NoError(t, err)
	_, err = b.Commit()
	require.NoError(t, err)

	err = b.WriteText("a.txt", "x")
	assert.True(t, IsKind(err, BatchClosed))
}

func TestWriteOnReadOnlySnapshotFails(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)
	s1, err := s0.WriteText("a.txt", "x", "")
	require.NoError(t, err)

	tagCommit := s1.commitOID
	_, err = r.refStore.WriteRef("refs/tags/v1", tagCommit, store.OID{}, false)
	require.NoError(t, err)
	tagged, err := r.Tag("v1")
	require.NoError(t, err)

	_, err = tagged.WriteText("b.txt", "y", "")
	assert.True(t, IsKind(err, PermissionError))
}

func TestRenameMovesBlob(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)
	s1, err := s0.WriteText("a.txt", "content", "")
	require.NoError(t, err)

	s2, err := s1.Rename("a.txt", "b.txt", "")
	require.NoError(t, err)
	assert.False(t, s2.Exists("a.txt"))
	text, err := s2.ReadText("b.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", text)
}

func TestMoveRejectsSelfMove(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)
	s1, err := s0.WriteText("a.txt", "content", "")
	require.NoError(t, err)

	_, err = s1.Rename("a.txt", "a.txt", "")
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestUndoAndRedo(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)
	s1, err := s0.WriteText("a.txt", "1", "")
	require.NoError(t, err)
	s2, err := s1.WriteText("a.txt", "2", "")
	require.NoError(t, err)

	undone, err := s2.Undo(1)
	require.NoError(t, err)
	assert.Equal(t, s1.commitOID, undone.commitOID)

	redone, err := undone.Redo(1)
	require.NoError(t, err)
	assert.Equal(t, s2.commitOID, redone.commitOID)
}

func TestUndoInsufficientHistory(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)

	_, err = s0.Undo(1)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestLogFiltersByPath(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)
	s1, err := s0.WriteText("a.txt", "1", "")
	require.NoError(t, err)
	s2, err := s1.WriteText("b.txt", "2", "")
	require.NoError(t, err)

	entries, err := s2.Log("a.txt", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, s1.commitOID, entries[0].Snapshot.commitOID)
}

func TestReflogReturnsEntriesMostRecentFirst(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)
	_, err = s0.WriteText("a.txt", "1", "first")
	require.NoError(t, err)

	entries, err := r.Reflog("main")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message)
}

func TestCopyInAndOut(t *testing.T) {
	r := newRepo(t)
	s0, err := r.Branch("main")
	require.NoError(t, err)

	localSrc := t.TempDir()
	require.NoError(t, writeLocalFixture(localSrc, "file.txt", "payload"))

	s1, err := s0.CopyIn([]string{localSrc + "/"}, "imported", CopyOptions{})
	require.NoError(t, err)
	text, err := s1.ReadText("imported/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", text)

	localDest := t.TempDir()
	rpt, err := s1.CopyOut([]string{"imported/"}, localDest, CopyOptions{})
	require.NoError(t, err)
	assert.Len(t, rpt.Update, 1)
}

func writeLocalFixture(dir, name, content string) error {
	return os.WriteFile(dir+"/"+name, []byte(content), 0o644)
}
