// Package notes implements the Notes module (spec.md §4.8): a
// per-namespace ref (refs/notes/<namespace>) whose tree maps commit
// hashes to note text, tolerant of both flat (<40-hex> blob entries at
// the tree root) and git's two-level fanout (<2-hex>/<38-hex>) layout
// written by external tooling. Grounded on the Tree Engine's
// RebuildTree/ReadBlobAt/ListTreeAt for the tree side and the Ref
// Updater (package refs) for the single-commit-per-mutation protocol
// spec.md mandates notes share with branches.
package notes

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mhalle/vost/config"
	"github.com/mhalle/vost/reflog"
	"github.com/mhalle/vost/refs"
	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

// ErrNotFound is returned by Get when no note exists for the target
// commit hash. Delete of a missing note is not an error.
var ErrNotFound = fmt.Errorf("notes: no note for target commit")

// Namespace is a handle on one notes ref.
type Namespace struct {
	name     string
	refName  string
	objs     store.ObjectStore
	refStore *store.RefStore
	lock     *refs.RepoLock
	log      *reflog.DB
	cfg      *config.Config
	logger   *logrus.Entry
}

// Open returns a handle on the namespace's notes ref
// (refs/notes/<name>); the ref need not exist yet. logger may be nil.
func Open(name string, objs store.ObjectStore, refStore *store.RefStore, lock *refs.RepoLock, log *reflog.DB, cfg *config.Config, logger *logrus.Entry) *Namespace {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Namespace{
		name:     name,
		refName:  "refs/notes/" + name,
		objs:     objs,
		refStore: refStore,
		lock:     lock,
		log:      log,
		cfg:      cfg,
		logger:   logger.WithField("component", "notes").WithField("namespace", name),
	}
}

func (n *Namespace) tip() (store.OID, bool, error) {
	return n.refStore.ReadRef(n.refName)
}

func (n *Namespace) treeOf(tip store.OID, ok bool) (store.OID, error) {
	if !ok {
		return store.OID{}, nil
	}
	c, err := n.objs.ReadCommit(tip)
	if err != nil {
		return store.OID{}, err
	}
	return c.Tree, nil
}

// flatName and fanout split/join a 40-hex commit hash into the two
// path forms the tree may use to key a note.
func flatName(hash string) string { return hash }
func fanoutName(hash string) string {
	return hash[:2] + "/" + hash[2:]
}

// lookupNote returns the blob containing the note text for hash under
// root, trying flat form first then fanout, per spec.md §4.8's layout
// tolerance requirement.
func lookupNote(s store.ObjectStore, root store.OID, hash string) ([]byte, bool, error) {
	if tree.ExistsAt(s, root, flatName(hash)) && !tree.IsDirAt(s, root, flatName(hash)) {
		data, err := tree.ReadBlobAt(s, root, flatName(hash))
		return data, true, err
	}
	fan := fanoutName(hash)
	if tree.ExistsAt(s, root, fan) && !tree.IsDirAt(s, root, fan) {
		data, err := tree.ReadBlobAt(s, root, fan)
		return data, true, err
	}
	return nil, false, nil
}

// Get returns the note text for target, a 40-hex commit hash.
func (n *Namespace) Get(target string) (string, error) {
	tip, ok, err := n.tip()
	if err != nil {
		return "", err
	}
	root, err := n.treeOf(tip, ok)
	if err != nil {
		return "", err
	}
	data, found, err := lookupNote(n.objs, root, target)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	return string(data), nil
}

// Has reports whether a note exists for target.
func (n *Namespace) Has(target string) bool {
	_, err := n.Get(target)
	return err == nil
}

// Set writes (or overwrites) the note for target, creating a single new
// commit on the namespace ref. New notes are written in flat form;
// Set never rewrites an existing fanout entry's layout, it simply
// overwrites in whichever form lookupNote found it.
func (n *Namespace) Set(target, text string) error {
	b := NewBatch(n)
	b.Set(target, text)
	_, err := b.Commit("")
	return err
}

// Delete removes the note for target, creating a single new commit.
func (n *Namespace) Delete(target string) error {
	b := NewBatch(n)
	b.Delete(target)
	_, err := b.Commit("")
	return err
}

// List returns every commit hash with a note, sorted.
func (n *Namespace) List() ([]string, error) {
	tip, ok, err := n.tip()
	if err != nil {
		return nil, err
	}
	root, err := n.treeOf(tip, ok)
	if err != nil {
		return nil, err
	}
	if root.IsZero() {
		return nil, nil
	}
	var hashes []string
	entries, err := tree.ListTreeAt(n.objs, root, "")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.Mode.IsTree() {
			hashes = append(hashes, e.Name) // flat entry
			continue
		}
		children, err := tree.ListTreeAt(n.objs, root, e.Name)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if !c.Mode.IsTree() {
				hashes = append(hashes, e.Name+c.Name) // fanout entry
			}
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Size returns the number of notes in the namespace.
func (n *Namespace) Size() (int, error) {
	hashes, err := n.List()
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}
