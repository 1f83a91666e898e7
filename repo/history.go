package repo

import (
	"fmt"
	"strings"

	"github.com/mhalle/vost/reflog"
)

// Reflog returns branch's reflog entries in reverse-chronological
// order (most recent first), per spec.md §4.9. Fails NotFound if the
// branch has never been advanced.
func (r *Repository) Reflog(branch string) ([]reflog.Entry, error) {
	entries, err := r.log.Log("refs/heads/" + branch)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errNotFound("no reflog for branch: " + branch)
	}
	return entries, nil
}

// Undo walks this snapshot's branch back n first-parent commits and
// moves the branch ref directly onto that ancestor commit (no new
// commit is created), recording a reflog entry whose message begins
// with "undo".
func (s *Snapshot) Undo(n int) (*Snapshot, error) {
	if !s.writable || s.refName == "" {
		return nil, errPermission("snapshot is not a writable branch")
	}
	if n < 1 {
		return nil, errInvalidArgument("undo: n must be >= 1")
	}
	target, err := s.Back(n)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.moveBranch(s.refName, s.commitOID, target.commitOID, target.treeOID, fmt.Sprintf("undo %d", n))
	if err != nil {
		return nil, err
	}
	return &Snapshot{repo: s.repo, commitOID: result.Tip, treeOID: result.Tree, refName: s.refName, writable: true}, nil
}

// Redo reverses the effect of the most recent n undos not yet
// re-reached, by walking the branch's reflog (most-recent-first) for
// the undo entry whose New OID is the current tip and advancing to its
// Old OID, repeated n times. Fails InvalidArgument if no such entry
// exists.
func (s *Snapshot) Redo(n int) (*Snapshot, error) {
	if !s.writable || s.refName == "" {
		return nil, errPermission("snapshot is not a writable branch")
	}
	if n < 1 {
		return nil, errInvalidArgument("redo: n must be >= 1")
	}
	entries, err := s.repo.log.Log(s.refName)
	if err != nil {
		return nil, err
	}

	target := s.commitOID
	for i := 0; i < n; i++ {
		found := false
		for _, e := range entries {
			if e.New == target && strings.HasPrefix(e.Message, "undo") {
				target = e.Old
				found = true
				break
			}
		}
		if !found {
			return nil, errInvalidArgument("redo: no redo history applies")
		}
	}

	commit, err := s.repo.objs.ReadCommit(target)
	if err != nil {
		return nil, err
	}
	result, err := s.repo.moveBranch(s.refName, s.commitOID, target, commit.Tree, fmt.Sprintf("redo %d", n))
	if err != nil {
		return nil, err
	}
	return &Snapshot{repo: s.repo, commitOID: result.Tip, treeOID: result.Tree, refName: s.refName, writable: true}, nil
}
