package repo

import (
	"io"

	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/store"
	"github.com/mhalle/vost/tree"
)

// Write stages and commits a single regular-file write, per spec.md
// §4.4. mode of 0 defaults to ModeRegular.
func (s *Snapshot) Write(path string, data []byte, mode store.FileMode, message string) (*Snapshot, error) {
	b, err := s.Batch(message, "write")
	if err != nil {
		return nil, err
	}
	if err := b.Write(path, data, mode); err != nil {
		return nil, err
	}
	return b.Commit()
}

func (s *Snapshot) WriteText(path, text, message string) (*Snapshot, error) {
	return s.Write(path, []byte(text), store.ModeRegular, message)
}

// WriteFromFile streams r fully into memory and stages it as a single
// write, per spec.md §4.5's "streaming sub-writer" contract.
func (s *Snapshot) WriteFromFile(path string, r io.Reader, mode store.FileMode, message string) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: IoError, Msg: err.Error()}
	}
	return s.Write(path, data, mode, message)
}

func (s *Snapshot) WriteSymlink(path, target, message string) (*Snapshot, error) {
	b, err := s.Batch(message, "write")
	if err != nil {
		return nil, err
	}
	if err := b.WriteSymlink(path, target); err != nil {
		return nil, err
	}
	return b.Commit()
}

// Remove removes paths in a single commit. recursive enables removing
// directory paths wholesale (Batch.Remove alone forbids this).
func (s *Snapshot) Remove(paths []string, recursive bool, message string) (*Snapshot, error) {
	b, err := s.Batch(message, "remove")
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		canon, err := canonPath(p)
		if err != nil {
			return nil, err
		}
		if recursive && tree.IsDirAt(s.repo.objs, s.treeOID, canon) {
			if err := removeSubtree(s.repo.objs, s.treeOID, canon, b); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.Remove(p); err != nil {
			return nil, err
		}
	}
	return b.Commit()
}

// Rename moves a single source path to dst within one commit: stage a
// write of the source's existing blob OID/mode at dst, and a remove of
// src. Self-rename (src == dst after normalization) fails with
// InvalidArgument.
func (s *Snapshot) Rename(src, dst, message string) (*Snapshot, error) {
	return s.Move([]string{src}, dst, message)
}

// Move relocates sources into dst within a single commit, per spec.md
// §4.7's rename/move semantics: with more than one source, dst must be
// an existing directory or end in "/". Copies reuse each source's
// existing blob OID (zero-copy) rather than re-reading bytes.
func (s *Snapshot) Move(sources []string, dst string, message string) (*Snapshot, error) {
	if len(sources) == 0 {
		return nil, errInvalidArgument("move: no sources given")
	}
	trailingSep := len(dst) > 0 && dst[len(dst)-1] == '/'
	dstCanon, err := canonPath(dst)
	if err != nil {
		return nil, err
	}
	destIsDir := trailingSep || tree.IsDirAt(s.repo.objs, s.treeOID, dstCanon)
	if len(sources) > 1 && !destIsDir {
		return nil, errInvalidArgument("move: dst must be a directory when moving multiple sources")
	}

	b, err := s.Batch(message, "move")
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		srcCanon, err := canonPath(src)
		if err != nil {
			return nil, err
		}
		target := dstCanon
		if destIsDir {
			target = vpath.Join(dstCanon, vpath.Base(srcCanon))
		}
		if target == srcCanon {
			return nil, errInvalidArgument("move: source and destination are the same path")
		}
		st, err := wrapTreeErrStat(tree.StatAt(s.repo.objs, s.treeOID, srcCanon, zeroTime()))
		if err != nil {
			return nil, err
		}
		if err := b.stageWrite(target, tree.PreHashedBlob(st.OID, st.Mode)); err != nil {
			return nil, err
		}
		if err := b.Remove(src); err != nil {
			return nil, err
		}
	}
	return b.Commit()
}

// Apply is the general-purpose write entry point backing copy/sync:
// writes and removes are applied atomically in a single commit, with
// recursive directory removal permitted (unlike Batch.Remove).
func (s *Snapshot) Apply(writes map[string][]byte, removes []string, message, operation string) (*Snapshot, error) {
	b, err := s.Batch(message, operation)
	if err != nil {
		return nil, err
	}
	for path, data := range writes {
		if err := b.Write(path, data, store.ModeRegular); err != nil {
			return nil, err
		}
	}
	for _, p := range removes {
		canon, err := canonPath(p)
		if err != nil {
			return nil, err
		}
		if tree.IsDirAt(s.repo.objs, s.treeOID, canon) {
			if err := removeSubtree(s.repo.objs, s.treeOID, canon, b); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.Remove(p); err != nil {
			return nil, err
		}
	}
	return b.Commit()
}

// removeSubtree stages a remove for every leaf blob under canon,
// recursively, so Remove(recursive=true) and Apply can delete whole
// directories through Batch's single-file-only Remove.
func removeSubtree(s store.ObjectStore, root store.OID, canon string, b *Batch) error {
	dirs, err := tree.WalkTree(s, root, canon)
	if err != nil {
		return wrapTreeErrBare(err)
	}
	for _, d := range dirs {
		for _, f := range d.Files {
			p := vpath.Join(d.Path, f.Name)
			delete(b.blobs, p)
			delete(b.staged, p)
			b.removes[p] = struct{}{}
		}
	}
	return nil
}
