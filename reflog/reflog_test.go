package reflog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalle/vost/store"
)

func TestAppendAndLogOrder(t *testing.T) {
	root := t.TempDir()
	refStore := store.NewRefStore(root)
	db := NewDB(refStore)

	sig := store.Signature{Name: "Ada", Email: "ada@example.com", When: time.Unix(1700000000, 0).UTC()}
	oidA, _ := store.ParseOID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	oidB, _ := store.ParseOID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	oidC, _ := store.ParseOID("cccccccccccccccccccccccccccccccccccccccc")

	require.NoError(t, db.Append("refs/heads/main", Entry{Old: store.OID{}, New: oidA, Committer: sig, Message: "initial"}))
	require.NoError(t, db.Append("refs/heads/main", Entry{Old: oidA, New: oidB, Committer: sig, Message: "+ f.txt"}))
	require.NoError(t, db.Append("refs/heads/main", Entry{Old: oidB, New: oidC, Committer: sig, Message: "multi word message"}))

	entries, err := db.Log("refs/heads/main")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, oidC, entries[0].New, "most recent entry first")
	assert.Equal(t, "multi word message", entries[0].Message)
	assert.Equal(t, oidA, entries[2].New)
	assert.Equal(t, "initial", entries[2].Message)
	assert.Equal(t, "Ada", entries[0].Committer.Name)
}

func TestLogEmptyForMissingRef(t *testing.T) {
	root := t.TempDir()
	db := NewDB(store.NewRefStore(root))
	entries, err := db.Log("refs/heads/nonexistent")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
