// Package change implements the Change Detector (spec.md §4.3): given
// two tree OIDs and a scope path, it produces a ChangeReport classifying
// every leaf-path difference under that scope as an add, update or
// delete. Grounded on antgroup-hugescm's modules/zeta/object/change.go
// Change/ChangeEntry/Changes API, generalized from git-tree diffing to
// arbitrary two-OID scoped diffing.
package change

import (
	"sort"
	"time"

	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

// FileEntry describes one leaf-path change.
type FileEntry struct {
	Path string
	Mode store.FileMode
	OID  store.OID
}

// PathError records a per-path failure encountered while computing or
// applying a change (spec.md §7's ignore_errors semantics).
type PathError struct {
	Path string
	Err  error
}

// Report is a ChangeReport, per spec.md §3: the three leaf-file lists
// are pairwise disjoint on Path.
type Report struct {
	Add      []FileEntry
	Update   []FileEntry
	Delete   []FileEntry
	Errors   []PathError
	Warnings []PathError

	// Operation labels the report for AutoMessage's "Batch <op>: ..."
	// form; empty means the generic "Batch: ..." form.
	Operation string
}

// Empty reports whether the report describes no changes at all.
func (r *Report) Empty() bool {
	return r == nil || (len(r.Add) == 0 && len(r.Update) == 0 && len(r.Delete) == 0)
}

// Action is one entry of actions(), sorted by path.
type Action struct {
	Path string
	Kind string // "add", "update", "delete"
	Mode store.FileMode
	OID  store.OID
}

// Actions returns every change in the report as a single list sorted by
// path, per spec.md §3 ("order is insertion order of detection but
// actions() sorts by path").
func (r *Report) Actions() []Action {
	if r == nil {
		return nil
	}
	out := make([]Action, 0, len(r.Add)+len(r.Update)+len(r.Delete))
	for _, e := range r.Add {
		out = append(out, Action{Path: e.Path, Kind: "add", Mode: e.Mode, OID: e.OID})
	}
	for _, e := range r.Update {
		out = append(out, Action{Path: e.Path, Kind: "update", Mode: e.Mode, OID: e.OID})
	}
	for _, e := range r.Delete {
		out = append(out, Action{Path: e.Path, Kind: "delete", Mode: e.Mode, OID: e.OID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Detect computes the minimal set of leaf-file differences between old
// and newOID under scope (empty scope = whole tree). OID equality
// between subtrees short-circuits recursion; no synthetic changes are
// invented for empty intermediate directories. scope may name either a
// directory or a single file.
func Detect(s store.ObjectStore, old, newOID store.OID, scope string) (*Report, error) {
	oldSt, oldExists, err := statOrMissing(s, old, scope)
	if err != nil {
		return nil, err
	}
	newSt, newExists, err := statOrMissing(s, newOID, scope)
	if err != nil {
		return nil, err
	}

	r := &Report{}
	switch {
	case !oldExists && !newExists:
		// nothing to report
	case oldExists && oldSt.Mode.IsTree() && newExists && newSt.Mode.IsTree():
		err = diffTrees(s, scope, oldSt.OID, newSt.OID, r)
	case oldExists && oldSt.Mode.IsTree() && !newExists:
		err = diffTrees(s, scope, oldSt.OID, store.OID{}, r)
	case !oldExists && newExists && newSt.Mode.IsTree():
		err = diffTrees(s, scope, store.OID{}, newSt.OID, r)
	default:
		err = diffLeafOrTypeChange(s, scope, oldSt, oldExists, newSt, newExists, r)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func statOrMissing(s store.ObjectStore, root store.OID, scope string) (tree.Stat, bool, error) {
	st, err := tree.StatAt(s, root, scope, time.Time{})
	if err != nil {
		if tree.IsNotFound(err) {
			return tree.Stat{}, false, nil
		}
		return tree.Stat{}, false, err
	}
	return st, true, nil
}

// diffLeafOrTypeChange handles every case where at least one side of
// the scope is a non-tree leaf, including the path changing between a
// file and a directory across old and new.
func diffLeafOrTypeChange(s store.ObjectStore, path string, oldSt tree.Stat, oldExists bool, newSt tree.Stat, newExists bool, r *Report) error {
	switch {
	case oldExists && !oldSt.Mode.IsTree() && newExists && !newSt.Mode.IsTree():
		if oldSt.OID != newSt.OID || oldSt.Mode != newSt.Mode {
			r.Update = append(r.Update, FileEntry{Path: path, Mode: newSt.Mode, OID: newSt.OID})
		}
		return nil
	case !oldExists && newExists && !newSt.Mode.IsTree():
		r.Add = append(r.Add, FileEntry{Path: path, Mode: newSt.Mode, OID: newSt.OID})
		return nil
	case oldExists && !oldSt.Mode.IsTree() && !newExists:
		r.Delete = append(r.Delete, FileEntry{Path: path, Mode: oldSt.Mode, OID: oldSt.OID})
		return nil
	case oldExists && oldSt.Mode.IsTree() && newExists && !newSt.Mode.IsTree():
		if err := diffTrees(s, path, oldSt.OID, store.OID{}, r); err != nil {
			return err
		}
		r.Add = append(r.Add, FileEntry{Path: path, Mode: newSt.Mode, OID: newSt.OID})
		return nil
	case oldExists && !oldSt.Mode.IsTree() && newExists && newSt.Mode.IsTree():
		r.Delete = append(r.Delete, FileEntry{Path: path, Mode: oldSt.Mode, OID: oldSt.OID})
		return diffTrees(s, path, store.OID{}, newSt.OID, r)
	}
	return nil
}

func diffTrees(s store.ObjectStore, prefix string, oldOID, newOID store.OID, r *Report) error {
	if oldOID == newOID {
		return nil // short-circuit: identical subtree, no leaf differences possible
	}
	oldEntries, err := readTreeOrEmpty(s, oldOID)
	if err != nil {
		return err
	}
	newEntries, err := readTreeOrEmpty(s, newOID)
	if err != nil {
		return err
	}

	oldByName := indexByName(oldEntries)
	newByName := indexByName(newEntries)

	names := make(map[string]struct{}, len(oldByName)+len(newByName))
	for n := range oldByName {
		names[n] = struct{}{}
	}
	for n := range newByName {
		names[n] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		childPath := name
		if prefix != "" {
			childPath = prefix + "/" + name
		}
		oe, inOld := oldByName[name]
		ne, inNew := newByName[name]

		switch {
		case !inOld && inNew:
			if err := addSubtree(s, childPath, ne, r); err != nil {
				return err
			}
		case inOld && !inNew:
			if err := deleteSubtree(s, childPath, oe, r); err != nil {
				return err
			}
		default:
			if oe.Mode.IsTree() && ne.Mode.IsTree() {
				if err := diffTrees(s, childPath, oe.OID, ne.OID, r); err != nil {
					return err
				}
			} else if oe.Mode.IsTree() != ne.Mode.IsTree() {
				// type changed between file and directory: treat as a
				// delete of the old leaf/subtree and an add of the new one.
				if err := deleteSubtree(s, childPath, oe, r); err != nil {
					return err
				}
				if err := addSubtree(s, childPath, ne, r); err != nil {
					return err
				}
			} else if oe.OID != ne.OID || oe.Mode != ne.Mode {
				r.Update = append(r.Update, FileEntry{Path: childPath, Mode: ne.Mode, OID: ne.OID})
			}
		}
	}
	return nil
}

func addSubtree(s store.ObjectStore, prefix string, e store.TreeEntry, r *Report) error {
	if !e.Mode.IsTree() {
		r.Add = append(r.Add, FileEntry{Path: prefix, Mode: e.Mode, OID: e.OID})
		return nil
	}
	entries, err := readTreeOrEmpty(s, e.OID)
	if err != nil {
		return err
	}
	for _, child := range entries {
		childPath := prefix + "/" + child.Name
		if err := addSubtree(s, childPath, child, r); err != nil {
			return err
		}
	}
	return nil
}

func deleteSubtree(s store.ObjectStore, prefix string, e store.TreeEntry, r *Report) error {
	if !e.Mode.IsTree() {
		r.Delete = append(r.Delete, FileEntry{Path: prefix, Mode: e.Mode, OID: e.OID})
		return nil
	}
	entries, err := readTreeOrEmpty(s, e.OID)
	if err != nil {
		return err
	}
	for _, child := range entries {
		childPath := prefix + "/" + child.Name
		if err := deleteSubtree(s, childPath, child, r); err != nil {
			return err
		}
	}
	return nil
}

func readTreeOrEmpty(s store.ObjectStore, oid store.OID) ([]store.TreeEntry, error) {
	if oid.IsZero() {
		return nil, nil
	}
	return s.ReadTree(oid)
}

func indexByName(entries []store.TreeEntry) map[string]store.TreeEntry {
	m := make(map[string]store.TreeEntry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}
