package tree

import (
	"sort"

	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/store"
)

// DirEntry is one step of a WalkIter: a directory path and the subdir
// names and file entries found directly inside it, both already sorted
// lexicographically.
type DirEntry struct {
	Path  string
	Dirs  []string
	Files []Entry
}

type walkFrame struct {
	path string
	oid  store.OID
}

// WalkIter produces a lazy, finite sequence of DirEntry values in
// pre-order (parent before children). It is restartable in the sense
// that calling NewWalkIter again constructs an independent iterator
// over the same (immutable) tree.
type WalkIter struct {
	s     store.ObjectStore
	stack []walkFrame
}

// NewWalkIter starts a walk rooted at the directory named by canon
// (root accepted).
func NewWalkIter(s store.ObjectStore, root store.OID, canon string) (*WalkIter, error) {
	oid, err := resolveTreeOrBlobErr(s, root, canon)
	if err != nil {
		return nil, err
	}
	return &WalkIter{s: s, stack: []walkFrame{{path: canon, oid: oid}}}, nil
}

// Next returns the next DirEntry, or ok=false once the walk is
// exhausted.
func (w *WalkIter) Next() (DirEntry, bool, error) {
	if len(w.stack) == 0 {
		return DirEntry{}, false, nil
	}
	f := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	var raw []store.TreeEntry
	if !f.oid.IsZero() {
		entries, err := w.s.ReadTree(f.oid)
		if err != nil {
			return DirEntry{}, false, err
		}
		raw = entries
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].Name < raw[j].Name })

	de := DirEntry{Path: f.path}
	var children []walkFrame
	for _, e := range raw {
		if e.Mode.IsTree() {
			de.Dirs = append(de.Dirs, e.Name)
			children = append(children, walkFrame{path: vpath.Join(f.path, e.Name), oid: e.OID})
		} else {
			de.Files = append(de.Files, Entry{Name: e.Name, Mode: e.Mode, OID: e.OID})
		}
	}
	for i := len(children) - 1; i >= 0; i-- {
		w.stack = append(w.stack, children[i])
	}
	return de, true, nil
}

// WalkTree collects the entire walk into a slice. Prefer WalkIter
// directly for large trees.
func WalkTree(s store.ObjectStore, root store.OID, canon string) ([]DirEntry, error) {
	it, err := NewWalkIter(s, root, canon)
	if err != nil {
		return nil, err
	}
	var out []DirEntry
	for {
		de, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, de)
	}
	return out, nil
}
