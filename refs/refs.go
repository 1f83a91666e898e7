// Package refs implements the Ref Updater (spec.md §4.6), the
// concurrency core of the module: it makes "check the branch tip, then
// move it" atomic across both threads and processes. Grounded on
// antgroup-hugescm's modules/zeta/refs/filesystem.go lockfile-then-
// rename discipline (already implemented at the store.RefStore layer)
// plus its reflog package for the entry appended on every successful
// advance; this package adds the repository-wide advisory lock and the
// no-op short-circuit spec.md §4.6 step 5 requires.
package refs

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/mhalle/vost/reflog"
	"github.com/mhalle/vost/store"
)

// entryOrDefault lets callers pass a nil *logrus.Entry (tests, internal
// callers that don't care) without every log call site needing a nil
// check.
func entryOrDefault(e *logrus.Entry) *logrus.Entry {
	if e == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return e
}

// RepoLock is the repository-wide advisory lock: a cross-process file
// lock plus an in-process mutex, held together for the duration of a
// single Advance call. The mutex exists so goroutines within one
// process serialize before ever contending on the file lock, per
// spec.md §5.
type RepoLock struct {
	mu    sync.Mutex
	flock *flock.Flock
}

// NewRepoLock creates a lock guarding root (the repository directory);
// the lock file itself lives at <root>/vost.lock.
func NewRepoLock(root string) *RepoLock {
	return &RepoLock{flock: flock.New(filepath.Join(root, "vost.lock"))}
}

// withLock acquires both the in-process mutex and the file lock for
// the duration of fn, releasing both on every exit path.
func (l *RepoLock) withLock(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("refs: acquire repository lock: %w", err)
	}
	defer l.flock.Unlock()
	return fn()
}

// StaleSnapshotError is returned when the branch tip no longer matches
// the caller's expected_tip at CAS time.
type StaleSnapshotError struct {
	Branch   string
	Expected store.OID
	Actual   store.OID
}

func (e *StaleSnapshotError) Error() string {
	return fmt.Sprintf("refs: %s moved: expected %s, got %s", e.Branch, e.Expected, e.Actual)
}

// Result is what Advance returns on success: the confirmed new tip, its
// tree OID, and whether a new commit was actually written (false on the
// no-op short-circuit of spec.md §4.6 step 5).
type Result struct {
	Tip     store.OID
	Tree    store.OID
	NoOp    bool
	Message string
}

// Builder computes a new tree from the confirmed tip and produces a
// commit object to write, returning the commit's own OID and root tree
// OID. It must not write the ref itself; Advance owns that.
type Builder func(confirmedTip store.OID) (commitOID store.OID, treeOID store.OID, message string, err error)

// Advance implements spec.md §4.6's protocol: under the repository
// lock, re-read the branch's current tip, fail fast on mismatch against
// expectedTip, invoke builder, short-circuit to a no-op if the
// resulting tree is unchanged, and otherwise write the branch ref and
// append a reflog entry. logger may be nil.
func Advance(lock *RepoLock, objs store.ObjectStore, refStore *store.RefStore, log *reflog.DB, logger *logrus.Entry, branch string, expectedTip store.OID, committer store.Signature, builder Builder) (Result, error) {
	logger = entryOrDefault(logger).WithField("branch", branch)
	var result Result
	err := lock.withLock(func() error {
		confirmedTip, ok, err := refStore.ReadRef(branch)
		if err != nil {
			return err
		}
		var currentTip store.OID
		if ok {
			currentTip = confirmedTip
		}
		if currentTip != expectedTip {
			logger.WithField("expected", expectedTip).WithField("actual", currentTip).Warn("refs: stale snapshot, branch moved since caller read its tip")
			return &StaleSnapshotError{Branch: branch, Expected: expectedTip, Actual: currentTip}
		}

		var currentTree store.OID
		if ok {
			commit, err := objs.ReadCommit(currentTip)
			if err != nil {
				return err
			}
			currentTree = commit.Tree
		}

		commitOID, treeOID, message, err := builder(currentTip)
		if err != nil {
			return err
		}

		if treeOID == currentTree {
			result = Result{Tip: currentTip, Tree: currentTree, NoOp: true}
			return nil
		}

		mismatch, err := refStore.WriteRef(branch, commitOID, currentTip, ok)
		if err != nil {
			return err
		}
		if mismatch {
			logger.Warn("refs: lost the race writing the ref, another writer advanced it first")
			return &StaleSnapshotError{Branch: branch, Expected: expectedTip}
		}

		if err := log.Append(branch, reflogEntry(currentTip, commitOID, committer, message)); err != nil {
			return err
		}

		result = Result{Tip: commitOID, Tree: treeOID, Message: message}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("refs: advance failed")
		return Result{}, err
	}
	return result, nil
}

// MoveTo repoints branch directly at an already-existing commit
// (targetTip, targetTree), without constructing a new commit object:
// used by undo/redo, which navigate to commits that already exist
// rather than synthesizing new ones. Unlike Advance, there is no
// tree-equality no-op short-circuit — moving the ref is itself the
// operation, even when targetTree happens to equal the current tree.
// logger may be nil.
func MoveTo(lock *RepoLock, refStore *store.RefStore, log *reflog.DB, logger *logrus.Entry, branch string, expectedTip, targetTip, targetTree store.OID, committer store.Signature, message string) (Result, error) {
	logger = entryOrDefault(logger).WithField("branch", branch)
	var result Result
	err := lock.withLock(func() error {
		confirmedTip, ok, err := refStore.ReadRef(branch)
		if err != nil {
			return err
		}
		var currentTip store.OID
		if ok {
			currentTip = confirmedTip
		}
		if currentTip != expectedTip {
			logger.WithField("expected", expectedTip).WithField("actual", currentTip).Warn("refs: stale snapshot, branch moved since caller read its tip")
			return &StaleSnapshotError{Branch: branch, Expected: expectedTip, Actual: currentTip}
		}

		mismatch, err := refStore.WriteRef(branch, targetTip, currentTip, ok)
		if err != nil {
			return err
		}
		if mismatch {
			logger.Warn("refs: lost the race writing the ref, another writer advanced it first")
			return &StaleSnapshotError{Branch: branch, Expected: expectedTip}
		}

		if err := log.Append(branch, reflogEntry(currentTip, targetTip, committer, message)); err != nil {
			return err
		}

		result = Result{Tip: targetTip, Tree: targetTree, Message: message}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("refs: move failed")
		return Result{}, err
	}
	return result, nil
}

func reflogEntry(old, new store.OID, committer store.Signature, message string) reflog.Entry {
	return reflog.Entry{Old: old, New: new, Committer: committer, Message: message}
}
