package tree

import (
	"time"

	"github.com/mhalle/vost/store"
)

// WriteEntry is a tagged variant over the three ways a leaf path can be
// staged for a write, per spec.md §4.3: bytes, a symlink target, or an
// already-hashed blob (used by zero-copy operations like
// copy_from_ref). Exactly one of the three constructors below should be
// used to build a WriteEntry; the unexported kind field records which.
type WriteEntry struct {
	kind        writeKind
	data        []byte
	target      string
	oid         store.OID
	mode        store.FileMode
	hasModeSet  bool
}

type writeKind int

const (
	blobDataKind writeKind = iota
	symlinkKind
	preHashedKind
)

// BlobData stages a write of literal bytes. mode defaults to
// ModeRegular; pass ModeExecutable to preserve the executable bit.
func BlobData(data []byte, mode store.FileMode) WriteEntry {
	return WriteEntry{kind: blobDataKind, data: data, mode: normalizeMode(mode), hasModeSet: mode != 0}
}

// Symlink stages a write of a symbolic link pointing at target.
// Symlinks carry no mode (spec.md §3).
func Symlink(target string) WriteEntry {
	return WriteEntry{kind: symlinkKind, target: target}
}

// PreHashedBlob stages a write that reuses an existing blob OID without
// re-reading its bytes, the mechanism copy_from_ref uses for zero-copy
// cross-snapshot copies.
func PreHashedBlob(oid store.OID, mode store.FileMode) WriteEntry {
	return WriteEntry{kind: preHashedKind, oid: oid, mode: normalizeMode(mode), hasModeSet: mode != 0}
}

func normalizeMode(mode store.FileMode) store.FileMode {
	if mode == 0 {
		return store.ModeRegular
	}
	return mode
}

// Stat is the result of StatAt, per spec.md §4.2.
type Stat struct {
	Mode     store.FileMode
	FileType string // "file", "executable", "symlink", "directory"
	Size     int64
	OID      store.OID
	NLink    int
	MTime    time.Time
}

// Entry is one line of a directory listing, as returned by ListTreeAt
// and WalkTree.
type Entry struct {
	Name string
	Mode store.FileMode
	OID  store.OID
}

func fileTypeOf(mode store.FileMode) string {
	switch mode {
	case store.ModeTree:
		return "directory"
	case store.ModeExecutable:
		return "executable"
	case store.ModeSymlink:
		return "symlink"
	default:
		return "file"
	}
}
