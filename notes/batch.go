package notes

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mhalle/vost/refs"
	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

// maxConcurrentNoteWrites bounds the fan-out of Batch.Commit's note
// blob pre-staging, mirroring repo.Batch's same-purpose limit.
const maxConcurrentNoteWrites = 8

type noteOp int

const (
	opSet noteOp = iota
	opDelete
)

// Batch accumulates set/delete operations against one namespace into a
// single commit on its notes ref, per spec.md §4.8: "last action on a
// given target wins; an explicit delete following a set results in
// deletion." An empty batch does not create a commit.
type Batch struct {
	ns  *Namespace
	ops map[string]noteOp
	txt map[string]string
}

// NewBatch returns a fresh accumulator over ns.
func NewBatch(ns *Namespace) *Batch {
	return &Batch{ns: ns, ops: make(map[string]noteOp), txt: make(map[string]string)}
}

// Set stages a note write, overwriting any prior pending operation on
// the same target.
func (b *Batch) Set(target, text string) {
	b.ops[target] = opSet
	b.txt[target] = text
}

// Delete stages a note removal, overwriting any prior pending operation
// on the same target.
func (b *Batch) Delete(target string) {
	b.ops[target] = opDelete
	delete(b.txt, target)
}

// Commit performs the namespace's single Ref Updater transaction. If no
// operations are pending, it returns without writing anything.
func (b *Batch) Commit(message string) (store.OID, error) {
	if len(b.ops) == 0 {
		tip, _, err := b.ns.tip()
		return tip, err
	}

	tip, ok, err := b.ns.tip()
	if err != nil {
		return store.OID{}, err
	}
	baseTree, err := b.ns.treeOf(tip, ok)
	if err != nil {
		return store.OID{}, err
	}

	removes := make(map[string]struct{}, len(b.ops))
	var sets []noteSet
	for target, op := range b.ops {
		switch op {
		case opSet:
			sets = append(sets, noteSet{path: notePath(b.ns.objs, baseTree, target), text: b.txt[target]})
		case opDelete:
			removes[notePath(b.ns.objs, baseTree, target)] = struct{}{}
		}
	}

	writes, err := b.hashNoteBlobs(sets)
	if err != nil {
		return store.OID{}, err
	}

	newTree, err := tree.RebuildTree(b.ns.objs, baseTree, writes, removes)
	if err != nil {
		return store.OID{}, err
	}

	identity := b.ns.cfg.Identity()
	committer := store.Signature{Name: identity.Name, Email: identity.Email}

	result, err := doAdvance(b.ns, tip, func(confirmedTip store.OID) (store.OID, store.OID, string, error) {
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("notes: %d change(s)", len(b.ops))
		}
		c := &store.Commit{
			Tree:      newTree,
			Parent:    confirmedTip,
			Author:    committer,
			Committer: committer,
			Message:   msg,
		}
		commitOID, err := b.ns.objs.WriteCommit(c)
		if err != nil {
			return store.OID{}, store.OID{}, "", err
		}
		return commitOID, newTree, msg, nil
	})
	if err != nil {
		return store.OID{}, err
	}
	return result.Tip, nil
}

// notePath picks the path form an existing note already uses (flat or
// fanout); new notes default to flat form.
func notePath(s store.ObjectStore, root store.OID, target string) string {
	if !root.IsZero() {
		fan := fanoutName(target)
		if tree.ExistsAt(s, root, fan) && !tree.IsDirAt(s, root, fan) {
			return fan
		}
	}
	return flatName(target)
}

// noteSet is one pending Set(), resolved to its final tree path.
type noteSet struct {
	path string
	text string
}

// hashNoteBlobs concurrently writes every pending note's blob, bounded
// by maxConcurrentNoteWrites, entirely before RebuildTree and the Ref
// Updater's critical section — the same pre-staging discipline
// repo.Batch.Commit uses.
func (b *Batch) hashNoteBlobs(sets []noteSet) (map[string]tree.WriteEntry, error) {
	writes := make(map[string]tree.WriteEntry, len(sets))
	if len(sets) == 0 {
		return writes, nil
	}
	hashed := make([]tree.WriteEntry, len(sets))

	objs := b.ns.objs
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentNoteWrites)
	for i, set := range sets {
		i, set := i, set
		g.Go(func() error {
			oid, err := objs.WriteBlob([]byte(set.text))
			if err != nil {
				return err
			}
			hashed[i] = tree.PreHashedBlob(oid, store.ModeRegular)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, set := range sets {
		writes[set.path] = hashed[i]
	}
	return writes, nil
}

func doAdvance(ns *Namespace, expectedTip store.OID, builder refs.Builder) (refs.Result, error) {
	identity := ns.cfg.Identity()
	committer := store.Signature{Name: identity.Name, Email: identity.Email}
	return refs.Advance(ns.lock, ns.objs, ns.refStore, ns.log, ns.logger, ns.refName, expectedTip, committer, builder)
}
