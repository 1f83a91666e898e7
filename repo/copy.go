package repo

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mhalle/vost/change"
	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

// maxConcurrentLocalReads bounds CopyIn's fan-out over local files once
// the walk has collected every path to read, the same semaphore-style
// limit Batch.Commit's blob pre-staging uses.
const maxConcurrentLocalReads = 8

// Exclude reports whether relPath (already repo-relative, "/"-joined)
// should be skipped during a copy/sync traversal.
type Exclude func(relPath string, isDir bool) bool

// CopyOptions configures copy_in/copy_out/sync_in/sync_out/
// copy_from_ref, per spec.md §4.7.
type CopyOptions struct {
	Exclude        Exclude
	IgnoreExisting bool
	IgnoreErrors   bool
	Delete         bool
	FollowSymlinks bool
	DryRun         bool
	Message        string
}

// planEntry is one staged write or remove, local to the copy planner.
type planEntry struct {
	path string
	data []byte
	oid  store.OID // set instead of data for zero-copy (CopyFromRef)
	mode store.FileMode
}

// CopyIn copies local filesystem sources into dest inside the
// repository tree. A source without a trailing separator copies its
// basename into dest; with a trailing separator, its contents.
func (s *Snapshot) CopyIn(sources []string, dest string, opts CopyOptions) (*Snapshot, error) {
	destCanon, err := canonPathRoot(dest)
	if err != nil {
		return nil, err
	}

	var candidates []localCandidate
	var errs []change.PathError
	touched := make(map[string]struct{})

	for _, src := range sources {
		contentsMode := strings.HasSuffix(src, string(os.PathSeparator)) || strings.HasSuffix(src, "/")
		base := filepath.Base(filepath.Clean(src))
		root := destCanon
		if !contentsMode {
			root = vpath.Join(destCanon, base)
		}
		err := filepath.WalkDir(src, func(p string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				if opts.IgnoreErrors {
					errs = append(errs, change.PathError{Path: p, Err: walkErr})
					return nil
				}
				return walkErr
			}
			rel, relErr := filepath.Rel(src, p)
			if relErr != nil {
				return relErr
			}
			relSlash := filepath.ToSlash(rel)
			repoPath := root
			if relSlash != "." {
				repoPath = vpath.Join(root, relSlash)
			}
			if opts.Exclude != nil && opts.Exclude(repoPath, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if opts.IgnoreExisting && tree.ExistsAt(s.repo.objs, s.treeOID, repoPath) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				if opts.IgnoreErrors {
					errs = append(errs, change.PathError{Path: p, Err: err})
					return nil
				}
				return err
			}
			candidates = append(candidates, localCandidate{localPath: p, repoPath: repoPath, info: info})
			touched[repoPath] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, &Error{Kind: IoError, Msg: err.Error()}
		}
	}

	writes, readErrs, err := readLocalCandidates(candidates, opts.FollowSymlinks, opts.IgnoreErrors)
	if err != nil {
		return nil, &Error{Kind: IoError, Msg: err.Error()}
	}
	errs = append(errs, readErrs...)

	var removes []string
	if opts.Delete {
		removes, err = pathsUnder(s.repo.objs, s.treeOID, destCanon, touched)
		if err != nil {
			return nil, err
		}
	}

	return s.applyPlan(writes, removes, errs, opts, "copy_in")
}

// localCandidate is one file discovered by CopyIn's metadata walk,
// still unread; readLocalCandidates reads its bytes concurrently.
type localCandidate struct {
	localPath string
	repoPath  string
	info      os.FileInfo
}

// readLocalCandidates reads every candidate's bytes concurrently under
// maxConcurrentLocalReads, entirely before the Ref Updater's critical
// section. A per-file read error is collected as a change.PathError
// when ignoreErrors is set; otherwise the first one aborts the group.
func readLocalCandidates(candidates []localCandidate, followSymlinks, ignoreErrors bool) ([]planEntry, []change.PathError, error) {
	entries := make([]planEntry, len(candidates))
	errs := make([]change.PathError, len(candidates))
	failed := make([]bool, len(candidates))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentLocalReads)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			entry, err := readLocalEntry(c.localPath, c.info, followSymlinks)
			if err != nil {
				if ignoreErrors {
					errs[i] = change.PathError{Path: c.localPath, Err: err}
					failed[i] = true
					return nil
				}
				return err
			}
			entry.path = c.repoPath
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	writes := make([]planEntry, 0, len(candidates))
	var pathErrs []change.PathError
	for i := range candidates {
		if failed[i] {
			pathErrs = append(pathErrs, errs[i])
			continue
		}
		writes = append(writes, entries[i])
	}
	return writes, pathErrs, nil
}

// SyncIn is copy_in with delete semantics and contents-mode for
// localPath, mirroring localPath onto repoPath exactly.
func (s *Snapshot) SyncIn(localPath, repoPath string, opts CopyOptions) (*Snapshot, error) {
	opts.Delete = true
	if !strings.HasSuffix(localPath, "/") {
		localPath += "/"
	}
	return s.CopyIn([]string{localPath}, repoPath, opts)
}

// CopyOut mirrors sources (repo paths) onto the local filesystem under
// dest. It performs no repository write; the returned change.Report
// lists the files written to local disk as Update entries. Files that
// Delete removes from local disk are not listed.
func (s *Snapshot) CopyOut(sources []string, dest string, opts CopyOptions) (*change.Report, error) {
	rpt := &change.Report{Operation: "copy_out"}
	produced := make(map[string]struct{})

	for _, src := range sources {
		contentsMode := strings.HasSuffix(src, "/")
		srcCanon, err := canonPathRoot(strings.TrimSuffix(src, "/"))
		if err != nil {
			return nil, err
		}
		root := dest
		if !contentsMode {
			root = filepath.Join(dest, vpath.Base(srcCanon))
		}
		dirs, err := wrapTreeErrDirEntries(tree.WalkTree(s.repo.objs, s.treeOID, srcCanon))
		if err != nil {
			return nil, err
		}
		var targets []localWriteTarget
		for _, d := range dirs {
			for _, f := range d.Files {
				relSlash := strings.TrimPrefix(strings.TrimPrefix(vpath.Join(d.Path, f.Name), srcCanon), "/")
				localPath := filepath.Join(root, filepath.FromSlash(relSlash))
				if opts.Exclude != nil && opts.Exclude(vpath.Join(d.Path, f.Name), false) {
					continue
				}
				targets = append(targets, localWriteTarget{localPath: localPath, entry: f})
			}
		}
		ok, writeErrs, err := writeLocalTargets(s.repo.objs, targets, opts)
		if err != nil {
			return nil, err
		}
		for i, t := range targets {
			if !ok[i] {
				continue
			}
			produced[t.localPath] = struct{}{}
			rpt.Update = append(rpt.Update, change.FileEntry{Path: t.localPath, Mode: t.entry.Mode, OID: t.entry.OID})
		}
		rpt.Errors = append(rpt.Errors, writeErrs...)
		if !opts.DryRun && opts.Delete {
			if err := pruneLocal(root, produced); err != nil && !opts.IgnoreErrors {
				return nil, &Error{Kind: IoError, Msg: err.Error()}
			}
		}
	}
	return rpt, nil
}

// SyncOut is copy_out with delete semantics, contents-mode for
// repoPath.
func (s *Snapshot) SyncOut(repoPath, localPath string, opts CopyOptions) (*change.Report, error) {
	opts.Delete = true
	if !strings.HasSuffix(repoPath, "/") {
		repoPath += "/"
	}
	return s.CopyOut([]string{repoPath}, localPath, opts)
}

// CopyFromRef copies sources from another snapshot of the same
// repository into dest of this snapshot, reusing existing blob OIDs
// without reading bytes (zero-copy), per spec.md §4.7.
func (s *Snapshot) CopyFromRef(source *Snapshot, sources []string, dest string, opts CopyOptions) (*Snapshot, error) {
	if err := s.sameRepo(source); err != nil {
		return nil, err
	}
	destCanon, err := canonPathRoot(dest)
	if err != nil {
		return nil, err
	}

	var writes []planEntry
	touched := make(map[string]struct{})
	for _, src := range sources {
		contentsMode := strings.HasSuffix(src, "/")
		srcCanon, err := canonPathRoot(strings.TrimSuffix(src, "/"))
		if err != nil {
			return nil, err
		}
		root := destCanon
		if !contentsMode {
			root = vpath.Join(destCanon, vpath.Base(srcCanon))
		}
		dirs, err := wrapTreeErrDirEntries(tree.WalkTree(source.repo.objs, source.treeOID, srcCanon))
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			for _, f := range d.Files {
				relSlash := strings.TrimPrefix(strings.TrimPrefix(vpath.Join(d.Path, f.Name), srcCanon), "/")
				repoPath := root
				if relSlash != "" {
					repoPath = vpath.Join(root, relSlash)
				}
				if opts.Exclude != nil && opts.Exclude(repoPath, false) {
					continue
				}
				if opts.IgnoreExisting && tree.ExistsAt(s.repo.objs, s.treeOID, repoPath) {
					continue
				}
				writes = append(writes, planEntry{path: repoPath, oid: f.OID, mode: f.Mode})
				touched[repoPath] = struct{}{}
			}
		}
	}

	var removes []string
	if opts.Delete {
		removes, err = pathsUnder(s.repo.objs, s.treeOID, destCanon, touched)
		if err != nil {
			return nil, err
		}
	}

	return s.applyPlan(writes, removes, nil, opts, "copy_from_ref")
}

// applyPlan rebuilds the tree from a planner's writes/removes, detects
// the resulting change.Report, and either commits it (the usual case)
// or, under DryRun, returns the base snapshot annotated with the
// would-be report and performs no object or ref writes.
func (s *Snapshot) applyPlan(writes []planEntry, removes []string, planErrors []change.PathError, opts CopyOptions, operation string) (*Snapshot, error) {
	writeMap := make(map[string]tree.WriteEntry, len(writes))
	for _, w := range writes {
		if w.oid != (store.OID{}) {
			writeMap[w.path] = tree.PreHashedBlob(w.oid, w.mode)
			continue
		}
		if w.mode.IsSymlink() {
			writeMap[w.path] = tree.Symlink(string(w.data))
			continue
		}
		writeMap[w.path] = tree.BlobData(w.data, w.mode)
	}
	removeSet := make(map[string]struct{}, len(removes))
	for _, p := range removes {
		removeSet[p] = struct{}{}
	}

	newTree, err := tree.RebuildTree(s.repo.objs, s.treeOID, writeMap, removeSet)
	if err != nil {
		return nil, wrapTreeErrBare(err)
	}

	rpt, err := change.Detect(s.repo.objs, s.treeOID, newTree, "")
	if err != nil {
		return nil, err
	}
	rpt.Operation = operation
	rpt.Errors = append(rpt.Errors, planErrors...)

	if opts.DryRun {
		return &Snapshot{repo: s.repo, commitOID: s.commitOID, treeOID: s.treeOID, refName: s.refName, writable: s.writable, changes: rpt}, nil
	}

	message := opts.Message
	if message == "" {
		message = change.AutoMessage(rpt)
	}
	result, err := s.repo.advanceBranch(s.refName, s.commitOID, newTree, message)
	if err != nil {
		return nil, err
	}
	return &Snapshot{repo: s.repo, commitOID: result.Tip, treeOID: result.Tree, refName: s.refName, writable: true, changes: rpt}, nil
}

// pathsUnder returns every leaf path under scope in the base tree that
// is not present in touched, for Delete-mode removal.
func pathsUnder(s store.ObjectStore, root store.OID, scope string, touched map[string]struct{}) ([]string, error) {
	dirs, err := wrapTreeErrDirEntries(tree.WalkTree(s, root, scope))
	if err != nil {
		if tree.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, d := range dirs {
		for _, f := range d.Files {
			p := vpath.Join(d.Path, f.Name)
			if _, ok := touched[p]; !ok {
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func readLocalEntry(p string, info os.FileInfo, followSymlinks bool) (planEntry, error) {
	if info.Mode()&os.ModeSymlink != 0 && !followSymlinks {
		target, err := os.Readlink(p)
		if err != nil {
			return planEntry{}, err
		}
		return planEntry{data: []byte(target), mode: store.ModeSymlink}, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return planEntry{}, err
	}
	mode := store.ModeRegular
	if info.Mode()&0o111 != 0 {
		mode = store.ModeExecutable
	}
	return planEntry{data: data, mode: mode}, nil
}

// localWriteTarget is one file CopyOut must write locally, its blob
// not yet read.
type localWriteTarget struct {
	localPath string
	entry     tree.Entry
}

// writeLocalTargets writes every target's blob to the local filesystem
// concurrently under maxConcurrentLocalReads, entirely independent of
// any Ref Updater transaction (CopyOut never writes to the
// repository). ok[i] reports whether targets[i] succeeded; a failure
// is collected into errs when ignoreErrors is set, otherwise it aborts
// the whole group.
func writeLocalTargets(s store.ObjectStore, targets []localWriteTarget, opts CopyOptions) (ok []bool, errs []change.PathError, err error) {
	ok = make([]bool, len(targets))
	perFile := make([]error, len(targets))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentLocalReads)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			if werr := writeLocalEntry(s, t.localPath, t.entry, opts); werr != nil {
				if opts.IgnoreErrors {
					perFile[i] = werr
					return nil
				}
				return werr
			}
			ok[i] = true
			return nil
		})
	}
	if werr := g.Wait(); werr != nil {
		return nil, nil, werr
	}
	for i, t := range targets {
		if perFile[i] != nil {
			errs = append(errs, change.PathError{Path: t.localPath, Err: perFile[i]})
		}
	}
	return ok, errs, nil
}

func writeLocalEntry(s store.ObjectStore, localPath string, f tree.Entry, opts CopyOptions) error {
	if opts.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	if f.Mode.IsSymlink() {
		target, err := tree.ReadBlobByOID(s, f.OID, 0, 0)
		if err != nil {
			return err
		}
		_ = os.Remove(localPath)
		return os.Symlink(string(target), localPath)
	}
	data, err := tree.ReadBlobByOID(s, f.OID, 0, 0)
	if err != nil {
		return err
	}
	perm := os.FileMode(0o644)
	if f.Mode.IsExecutable() {
		perm = 0o755
	}
	return os.WriteFile(localPath, data, perm)
}

// pruneLocal removes every file under root not present in keep, then
// removes any directory left empty.
func pruneLocal(root string, keep map[string]struct{}) error {
	var toRemove []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := keep[p]; !ok {
			toRemove = append(toRemove, p)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, p := range toRemove {
		if err := os.Remove(p); err != nil {
			return err
		}
	}
	return pruneEmptyDirs(root)
}

func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		if dir == root {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}
	return nil
}
