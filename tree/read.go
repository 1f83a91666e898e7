package tree

import (
	"time"

	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/store"
)

// lookup resolves a normalized, non-root path against root, returning
// the TreeEntry named by its final segment. If root itself is the zero
// OID, every lookup fails with NotFound.
func lookup(s store.ObjectStore, root store.OID, canon string) (store.TreeEntry, error) {
	segs := vpath.Segments(canon)
	cur := root
	for i, seg := range segs {
		if cur.IsZero() {
			return store.TreeEntry{}, errNotFound(canon)
		}
		entries, err := s.ReadTree(cur)
		if err != nil {
			return store.TreeEntry{}, err
		}
		e, ok := store.Find(entries, seg)
		if !ok {
			return store.TreeEntry{}, errNotFound(canon)
		}
		if i == len(segs)-1 {
			return e, nil
		}
		if !e.Mode.IsTree() {
			return store.TreeEntry{}, errNotADirectory(canon)
		}
		cur = e.OID
	}
	return store.TreeEntry{}, errNotFound(canon) // unreachable: canon is non-empty
}

// resolveTree resolves a (possibly root) path to the tree OID it names.
func resolveTree(s store.ObjectStore, root store.OID, canon string) (store.OID, error) {
	if canon == "" {
		return root, nil
	}
	e, err := lookup(s, root, canon)
	if err != nil {
		return store.OID{}, err
	}
	if !e.Mode.IsTree() {
		return store.OID{}, errNotADirectory(canon)
	}
	return e.OID, nil
}

// ReadBlobAt returns the full contents of the blob at path. Symlinks
// return their target text as bytes, matching spec.md §4.2.
func ReadBlobAt(s store.ObjectStore, root store.OID, canon string) ([]byte, error) {
	e, err := lookup(s, root, canon)
	if err != nil {
		return nil, err
	}
	if e.Mode.IsTree() {
		return nil, errIsADirectory(canon)
	}
	return s.ReadBlob(e.OID)
}

// ReadBlobRange returns a clamped slice of the blob at path, never
// overflowing on offset+size. Offsets beyond the blob return an empty
// result, per spec.md §4.2.
func ReadBlobRange(s store.ObjectStore, root store.OID, canon string, offset, size int64) ([]byte, error) {
	data, err := ReadBlobAt(s, root, canon)
	if err != nil {
		return nil, err
	}
	return clampRange(data, offset, size), nil
}

// ReadBlobByOID bypasses the tree lookup entirely.
func ReadBlobByOID(s store.ObjectStore, oid store.OID, offset, size int64) ([]byte, error) {
	data, err := s.ReadBlob(oid)
	if err != nil {
		return nil, err
	}
	if offset == 0 && size == 0 {
		return data, nil
	}
	return clampRange(data, offset, size), nil
}

func clampRange(data []byte, offset, size int64) []byte {
	n := int64(len(data))
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return []byte{}
	}
	end := n
	if size > 0 && offset+size < n {
		end = offset + size
	}
	return data[offset:end]
}

// ListTreeAt lists the direct children of the directory at path (root
// accepted). Fails with NotADirectory on a blob path.
func ListTreeAt(s store.ObjectStore, root store.OID, canon string) ([]Entry, error) {
	treeOID, err := resolveTreeOrBlobErr(s, root, canon)
	if err != nil {
		return nil, err
	}
	if treeOID.IsZero() {
		return nil, nil
	}
	raw, err := s.ReadTree(treeOID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, Entry{Name: e.Name, Mode: e.Mode, OID: e.OID})
	}
	return entries, nil
}

func resolveTreeOrBlobErr(s store.ObjectStore, root store.OID, canon string) (store.OID, error) {
	if canon == "" {
		return root, nil
	}
	e, err := lookup(s, root, canon)
	if err != nil {
		return store.OID{}, err
	}
	if !e.Mode.IsTree() {
		return store.OID{}, errNotADirectory(canon)
	}
	return e.OID, nil
}

// ExistsAt never fails for valid paths.
func ExistsAt(s store.ObjectStore, root store.OID, canon string) bool {
	if canon == "" {
		return true
	}
	_, err := lookup(s, root, canon)
	return err == nil
}

// IsDirAt reports whether path names a directory (false, not an error,
// if the path doesn't exist).
func IsDirAt(s store.ObjectStore, root store.OID, canon string) bool {
	if canon == "" {
		return true
	}
	e, err := lookup(s, root, canon)
	return err == nil && e.Mode.IsTree()
}

// StatAt returns {mode, file_type, size, oid, nlink, mtime}. mtime is
// supplied by the caller (the owning commit's committer timestamp) since
// the Tree Engine itself has no notion of commits.
func StatAt(s store.ObjectStore, root store.OID, canon string, mtime time.Time) (Stat, error) {
	var mode store.FileMode
	var oid store.OID
	if canon == "" {
		mode = store.ModeTree
		oid = root
	} else {
		e, err := lookup(s, root, canon)
		if err != nil {
			return Stat{}, err
		}
		mode, oid = e.Mode, e.OID
	}

	st := Stat{Mode: mode, FileType: fileTypeOf(mode), OID: oid}
	if mode.IsTree() {
		var subtrees int
		if !oid.IsZero() {
			entries, err := s.ReadTree(oid)
			if err != nil {
				return Stat{}, err
			}
			for _, e := range entries {
				if e.Mode.IsTree() {
					subtrees++
				}
			}
		}
		st.NLink = 2 + subtrees
	} else {
		size, err := s.BlobSize(oid)
		if err != nil {
			return Stat{}, err
		}
		st.Size = size
		st.NLink = 1
	}
	st.MTime = mtime
	return st, nil
}
