package repo

import (
	"golang.org/x/sync/errgroup"

	"github.com/mhalle/vost/change"
	"github.com/mhalle/vost/refs"
	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

// maxConcurrentBlobWrites bounds the fan-out of Batch.Commit's blob
// pre-staging, the same semaphore-style limit copy.go's transfer
// workers use.
const maxConcurrentBlobWrites = 8

// pendingBlob is a Write() call not yet hashed into an OID; Commit
// hashes every one of these concurrently before RebuildTree runs.
type pendingBlob struct {
	data []byte
	mode store.FileMode
}

// Batch accumulates write/remove operations against a base Snapshot
// into a single commit, per spec.md §4.5: the last write on a path
// wins; a remove clears any pending write on the same path; a write
// after a remove on the same path replaces the pending remove.
type Batch struct {
	base      *Snapshot
	blobs     map[string]pendingBlob  // raw bytes awaiting concurrent hashing
	staged    map[string]tree.WriteEntry // symlinks and already-hashed (zero-copy) writes
	removes   map[string]struct{}
	message   string
	operation string
	closed    bool
	result    *Snapshot
}

// Batch returns a fresh accumulator over s. message and operation seed
// the eventual commit; an empty message falls back to AutoMessage.
func (s *Snapshot) Batch(message, operation string) (*Batch, error) {
	if !s.writable {
		return nil, errPermission("snapshot is read-only")
	}
	return &Batch{
		base:      s,
		blobs:     make(map[string]pendingBlob),
		staged:    make(map[string]tree.WriteEntry),
		removes:   make(map[string]struct{}),
		message:   message,
		operation: operation,
	}, nil
}

func (b *Batch) Write(path string, data []byte, mode store.FileMode) error {
	if b.closed {
		return errBatchClosed()
	}
	if mode == 0 {
		mode = store.ModeRegular
	}
	canon, err := canonPath(path)
	if err != nil {
		return err
	}
	delete(b.removes, canon)
	delete(b.staged, canon)
	b.blobs[canon] = pendingBlob{data: data, mode: mode}
	return nil
}

func (b *Batch) WriteText(path, text string) error {
	return b.Write(path, []byte(text), store.ModeRegular)
}

func (b *Batch) WriteSymlink(path, target string) error {
	return b.stageWrite(path, tree.Symlink(target))
}

// Remove rejects a path that is neither present in the base tree nor
// staged as a pending write, with NotFound, and a directory path with
// IsADirectory — Batch itself never removes a tree recursively; callers
// needing that go through Apply.
func (b *Batch) Remove(path string) error {
	if b.closed {
		return errBatchClosed()
	}
	canon, err := canonPath(path)
	if err != nil {
		return err
	}
	_, blobPending := b.blobs[canon]
	_, stagedPending := b.staged[canon]
	if !blobPending && !stagedPending {
		if !tree.ExistsAt(b.base.repo.objs, b.base.treeOID, canon) {
			return errNotFound(path)
		}
		if tree.IsDirAt(b.base.repo.objs, b.base.treeOID, canon) {
			return errIsADirectory(path)
		}
	}
	delete(b.blobs, canon)
	delete(b.staged, canon)
	b.removes[canon] = struct{}{}
	return nil
}

// stageWrite stages an entry that is already hashed or needs no
// hashing (symlinks, zero-copy PreHashedBlob writes from Move/
// CopyFromRef) — unlike Write, it never goes through Commit's
// concurrent blob-hashing pass.
func (b *Batch) stageWrite(path string, entry tree.WriteEntry) error {
	if b.closed {
		return errBatchClosed()
	}
	canon, err := canonPath(path)
	if err != nil {
		return err
	}
	delete(b.removes, canon)
	delete(b.blobs, canon)
	b.staged[canon] = entry
	return nil
}

// Commit performs the single Ref Updater transaction and returns the
// resulting Snapshot, with Changes() set to the detected diff (empty
// for a no-op commit). An empty Batch commits nothing and returns the
// base snapshot unchanged.
func (b *Batch) Commit() (*Snapshot, error) {
	if b.closed {
		return nil, errBatchClosed()
	}
	b.closed = true
	s := b.base

	if len(b.blobs) == 0 && len(b.staged) == 0 && len(b.removes) == 0 {
		b.result = &Snapshot{repo: s.repo, commitOID: s.commitOID, treeOID: s.treeOID, refName: s.refName, writable: true, changes: &change.Report{}}
		return b.result, nil
	}

	writes, err := b.hashPendingBlobs()
	if err != nil {
		return nil, err
	}

	newTree, err := tree.RebuildTree(s.repo.objs, s.treeOID, writes, b.removes)
	if err != nil {
		return nil, wrapTreeErrBare(err)
	}

	rpt, err := change.Detect(s.repo.objs, s.treeOID, newTree, "")
	if err != nil {
		return nil, err
	}
	rpt.Operation = b.operation

	message := b.message
	if message == "" {
		message = change.AutoMessage(rpt)
	}

	result, err := s.repo.advanceBranch(s.refName, s.commitOID, newTree, message)
	if err != nil {
		return nil, err
	}

	b.result = &Snapshot{repo: s.repo, commitOID: result.Tip, treeOID: result.Tree, refName: s.refName, writable: true, changes: rpt}
	return b.result, nil
}

// hashPendingBlobs concurrently writes every staged raw-bytes blob,
// bounded by maxConcurrentBlobWrites, and merges the resulting
// PreHashedBlob entries with the already-hashed/symlink writes staged
// via stageWrite. Fan-out happens entirely before RebuildTree and the
// Ref Updater's critical section.
func (b *Batch) hashPendingBlobs() (map[string]tree.WriteEntry, error) {
	writes := make(map[string]tree.WriteEntry, len(b.blobs)+len(b.staged))
	for path, entry := range b.staged {
		writes[path] = entry
	}
	if len(b.blobs) == 0 {
		return writes, nil
	}

	paths := make([]string, 0, len(b.blobs))
	for path := range b.blobs {
		paths = append(paths, path)
	}
	hashed := make([]tree.WriteEntry, len(paths))

	objs := b.base.repo.objs
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentBlobWrites)
	for i, path := range paths {
		i, blob := i, b.blobs[path]
		g.Go(func() error {
			oid, err := objs.WriteBlob(blob.data)
			if err != nil {
				return err
			}
			hashed[i] = tree.PreHashedBlob(oid, blob.mode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &Error{Kind: IoError, Msg: err.Error()}
	}
	for i, path := range paths {
		writes[path] = hashed[i]
	}
	return writes, nil
}

// Abort discards the batch without committing; subsequent mutations
// still fail with BatchClosed, matching spec.md §4.5's "explicitly
// aborted" exit path for guaranteed-completion callers.
func (b *Batch) Abort() {
	b.closed = true
}

// advanceBranch is the shared Ref Updater call used by Batch.Commit and
// every single-shot write convenience method on Snapshot: it always
// mints a new commit wrapping newTree.
func (r *Repository) advanceBranch(refName string, expectedTip, newTree store.OID, message string) (refs.Result, error) {
	sig := r.identity()
	return refs.Advance(r.lock, r.objs, r.refStore, r.log, r.componentLogger("refs"), refName, expectedTip, sig, func(confirmedTip store.OID) (store.OID, store.OID, string, error) {
		c := &store.Commit{Tree: newTree, Parent: confirmedTip, Author: sig, Committer: sig, Message: message}
		commitOID, err := r.objs.WriteCommit(c)
		if err != nil {
			return store.OID{}, store.OID{}, "", err
		}
		return commitOID, newTree, message, nil
	})
}

// moveBranch CAS-moves refName directly onto an already-existing
// commit (targetTip, targetTree) without minting a new commit: the
// Ref-Updater path Undo/Redo use, since both navigate to commits the
// repository already has rather than synthesizing new ones.
func (r *Repository) moveBranch(refName string, expectedTip, targetTip, targetTree store.OID, message string) (refs.Result, error) {
	sig := r.identity()
	return refs.MoveTo(r.lock, r.refStore, r.log, r.componentLogger("refs"), refName, expectedTip, targetTip, targetTree, sig, message)
}
