package repo

import (
	"strings"

	"github.com/mhalle/vost/change"
	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

// Snapshot is an immutable value pinned to one commit: (repo, commit
// OID, tree OID, optional ref name, writable flag, optional change
// report). Every write method returns a new Snapshot; the receiver is
// never mutated, per spec.md §3 / §9.
type Snapshot struct {
	repo      *Repository
	commitOID store.OID
	treeOID   store.OID
	refName   string // empty for tag-sourced/bare-commit snapshots
	writable  bool
	changes   *change.Report
}

func (s *Snapshot) CommitHash() string { return s.commitOID.String() }
func (s *Snapshot) Writable() bool     { return s.writable }
func (s *Snapshot) Changes() *change.Report { return s.changes }

// sameRepo is the cross-repo safety check spec.md §4.6 requires of
// every write path that takes another Snapshot as an argument.
func (s *Snapshot) sameRepo(o *Snapshot) error {
	if s.repo != o.repo {
		return errInvalidArgument("snapshots belong to different repositories")
	}
	return nil
}

// --- read operations: delegate to the Tree Engine ---

func (s *Snapshot) Read(path string, offset, size int64) ([]byte, error) {
	canon, err := canonPath(path)
	if err != nil {
		return nil, err
	}
	return wrapTreeErr(tree.ReadBlobRange(s.repo.objs, s.treeOID, canon, offset, size))
}

func (s *Snapshot) ReadText(path string) (string, error) {
	data, err := s.Read(path, 0, 0)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Snapshot) ReadByHash(oid store.OID, offset, size int64) ([]byte, error) {
	return tree.ReadBlobByOID(s.repo.objs, oid, offset, size)
}

func (s *Snapshot) Readlink(path string) (string, error) {
	data, err := s.Read(path, 0, 0)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Snapshot) Ls(path string) ([]tree.Entry, error) {
	canon, err := canonPathRoot(path)
	if err != nil {
		return nil, err
	}
	return wrapTreeErrEntries(tree.ListTreeAt(s.repo.objs, s.treeOID, canon))
}

// Listdir is an alias of Ls for parity with spec.md's naming.
func (s *Snapshot) Listdir(path string) ([]tree.Entry, error) { return s.Ls(path) }

func (s *Snapshot) Walk(path string) ([]tree.DirEntry, error) {
	canon, err := canonPathRoot(path)
	if err != nil {
		return nil, err
	}
	return wrapTreeErrDirEntries(tree.WalkTree(s.repo.objs, s.treeOID, canon))
}

func (s *Snapshot) Exists(path string) bool {
	canon, err := canonPathRoot(path)
	if err != nil {
		return false
	}
	return tree.ExistsAt(s.repo.objs, s.treeOID, canon)
}

func (s *Snapshot) IsDir(path string) bool {
	canon, err := canonPathRoot(path)
	if err != nil {
		return false
	}
	return tree.IsDirAt(s.repo.objs, s.treeOID, canon)
}

func (s *Snapshot) Stat(path string) (tree.Stat, error) {
	canon, err := canonPathRoot(path)
	if err != nil {
		return tree.Stat{}, err
	}
	commit, err := s.repo.objs.ReadCommit(s.commitOID)
	if err != nil {
		return tree.Stat{}, err
	}
	return wrapTreeErrStat(tree.StatAt(s.repo.objs, s.treeOID, canon, commit.Committer.When))
}

func (s *Snapshot) FileType(path string) (string, error) {
	st, err := s.Stat(path)
	if err != nil {
		return "", err
	}
	return st.FileType, nil
}

func (s *Snapshot) Size(path string) (int64, error) {
	st, err := s.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size, nil
}

func (s *Snapshot) ObjectHash(path string) (store.OID, error) {
	st, err := s.Stat(path)
	if err != nil {
		return store.OID{}, err
	}
	return st.OID, nil
}

func (s *Snapshot) Glob(pattern string) ([]string, error) {
	return tree.Glob(s.repo.objs, s.treeOID, pattern)
}

func (s *Snapshot) Iglob(pattern string) (*tree.IglobIter, error) {
	return tree.NewIglobIter(s.repo.objs, s.treeOID, pattern)
}

// --- history navigation ---

// Parent returns a read-only Snapshot over this commit's first parent,
// or ok=false if this is the initial commit.
func (s *Snapshot) Parent() (*Snapshot, bool, error) {
	commit, err := s.repo.objs.ReadCommit(s.commitOID)
	if err != nil {
		return nil, false, err
	}
	if !commit.HasParent() {
		return nil, false, nil
	}
	parentCommit, err := s.repo.objs.ReadCommit(commit.Parent)
	if err != nil {
		return nil, false, err
	}
	return &Snapshot{repo: s.repo, commitOID: commit.Parent, treeOID: parentCommit.Tree, writable: false}, true, nil
}

// Back applies Parent n times.
func (s *Snapshot) Back(n int) (*Snapshot, error) {
	if n < 0 {
		return nil, errInvalidArgument("back: n must be >= 0")
	}
	cur := s
	for i := 0; i < n; i++ {
		next, ok, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errInvalidArgument("back: insufficient history")
		}
		cur = next
	}
	return cur, nil
}

// LogEntry pairs a historical Snapshot with its own commit message, so
// Log callers don't need a second Stat round-trip to read it.
type LogEntry struct {
	Snapshot *Snapshot
	Message  string
}

// Log walks this snapshot's first-parent chain, optionally filtered to
// commits that touched path and/or whose message matches match. The
// message filter is a substring test: leading and trailing '*' are
// trimmed from match and the rest must occur in the message; other
// glob metacharacters ('?', '[...]', inner '*') are matched literally.
func (s *Snapshot) Log(path string, match string) ([]LogEntry, error) {
	var canon string
	if path != "" {
		var err error
		canon, err = canonPath(path)
		if err != nil {
			return nil, err
		}
	}

	var out []LogEntry
	cur := s
	for {
		commit, err := s.repo.objs.ReadCommit(cur.commitOID)
		if err != nil {
			return nil, err
		}
		var parentCommit *store.Commit
		if commit.HasParent() {
			if parentCommit, err = s.repo.objs.ReadCommit(commit.Parent); err != nil {
				return nil, err
			}
		}

		include := true
		if canon != "" {
			var parentTreeOID store.OID
			if parentCommit != nil {
				parentTreeOID = parentCommit.Tree
			}
			include = pathChanged(s.repo.objs, cur.treeOID, parentTreeOID, parentCommit != nil, canon)
		}
		if include && match != "" {
			matched, err := messageMatches(match, commit.Message)
			if err != nil {
				return nil, err
			}
			include = matched
		}
		if include {
			out = append(out, LogEntry{Snapshot: cur, Message: commit.Message})
		}

		if parentCommit == nil {
			break
		}
		cur = &Snapshot{repo: s.repo, commitOID: commit.Parent, treeOID: parentCommit.Tree, writable: false}
	}
	return out, nil
}

// pathChanged reports whether path's OID differs between a commit's
// tree and its first parent's tree, or appears/disappears. For the
// initial commit (hasParent == false) it is yielded iff path exists.
func pathChanged(s store.ObjectStore, commitTree, parentTree store.OID, hasParent bool, path string) bool {
	if !hasParent {
		return tree.ExistsAt(s, commitTree, path)
	}
	parentOID, parentErr := tree.StatAt(s, parentTree, path, zeroTime())
	commitOID, commitErr := tree.StatAt(s, commitTree, path, zeroTime())
	parentExists := parentErr == nil
	commitExists := commitErr == nil
	if parentExists != commitExists {
		return true
	}
	if !parentExists {
		return false
	}
	return parentOID.OID != commitOID.OID || parentOID.Mode != commitOID.Mode
}

func messageMatches(pattern, message string) (bool, error) {
	return strings.Contains(message, strings.Trim(pattern, "*")), nil
}
