package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RefStore persists refs on disk following spec.md §6's layout: a
// 40-hex OID plus newline at refs/heads/<name>, refs/tags/<name>, or
// refs/notes/<namespace>; HEAD holding either a symbolic ref or a
// detached OID. Grounded on modules/zeta/refs/filesystem.go's
// lockfile-then-rename update discipline, generalized from Reference
// values to the bare (OID, ok) pairs the Ref Updater needs.
type RefStore struct {
	root string // repository root (parent of "refs" and "HEAD")
}

func NewRefStore(root string) *RefStore {
	return &RefStore{root: root}
}

func (s *RefStore) refPath(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// ReadRef returns the OID a ref currently points to, or ok=false if the
// ref does not exist.
func (s *RefStore) ReadRef(name string) (OID, bool, error) {
	data, err := os.ReadFile(s.refPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return OID{}, false, nil
		}
		return OID{}, false, err
	}
	line := strings.TrimSpace(string(data))
	oid, err := ParseOID(line)
	if err != nil {
		return OID{}, false, fmt.Errorf("store: ref %s contains malformed oid %q: %w", name, line, err)
	}
	return oid, true, nil
}

// WriteRef performs a compare-and-set: it writes oid to name's ref file
// only if the ref's current value equals expected (ZeroOID/ok=false
// means "ref must not currently exist"). It reports mismatch=true
// without writing if the precondition fails.
//
// The caller is expected to already hold the repository-wide advisory
// lock (refs.RepoLock); WriteRef itself only guards against concurrent
// writers that bypass the lock by using the same exclusive-create
// lockfile git itself uses, so a corrupted lock discipline still fails
// safe instead of silently racing.
func (s *RefStore) WriteRef(name string, oid OID, expected OID, expectedOK bool) (mismatch bool, err error) {
	path := s.refPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("store: mkdir for ref %s: %w", name, err)
	}
	lockPath := path + ".lock"
	lockFile, err := openExclusive(lockPath)
	if err != nil {
		if os.IsExist(err) {
			return false, fmt.Errorf("store: ref %s is locked by another writer", name)
		}
		return false, err
	}
	defer os.Remove(lockPath)

	curOID, curOK, err := s.ReadRef(name)
	if err != nil {
		_ = lockFile.Close()
		return false, err
	}
	if curOK != expectedOK || (expectedOK && curOID != expected) {
		_ = lockFile.Close()
		return true, nil
	}

	if _, err := fmt.Fprintln(lockFile, oid.String()); err != nil {
		_ = lockFile.Close()
		return false, err
	}
	if err := lockFile.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(lockPath, path); err != nil {
		return false, fmt.Errorf("store: rename ref %s into place: %w", name, err)
	}
	return false, nil
}

// DeleteRef removes a ref file outright; removing a ref that does not
// exist is not an error. No other package of the module calls it.
func (s *RefStore) DeleteRef(name string) error {
	if err := os.Remove(s.refPath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListRefs returns the names of every ref under the given prefix
// ("refs/heads/", "refs/tags/", "refs/notes/"), sorted.
func (s *RefStore) ListRefs(prefix string) ([]string, error) {
	base := s.refPath(prefix)
	var names []string
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ReadHEAD returns the branch ref name HEAD points to (attached) or
// ("", detachedOID, false) when HEAD holds a raw OID, following the
// persisted layout of spec.md §6: "ref: refs/heads/<name>\n" or a
// 40-hex OID.
func (s *RefStore) ReadHEAD() (branch string, detached OID, isBranch bool, err error) {
	data, err := os.ReadFile(filepath.Join(s.root, "HEAD"))
	if err != nil {
		return "", OID{}, false, err
	}
	line := strings.TrimSpace(string(data))
	if rest, ok := strings.CutPrefix(line, "ref: "); ok {
		return rest, OID{}, true, nil
	}
	oid, err := ParseOID(line)
	if err != nil {
		return "", OID{}, false, fmt.Errorf("store: HEAD contains malformed value %q: %w", line, err)
	}
	return "", oid, false, nil
}

// WriteHEAD points HEAD at a branch (symbolic form).
func (s *RefStore) WriteHEAD(branchRef string) error {
	return os.WriteFile(filepath.Join(s.root, "HEAD"), []byte("ref: "+branchRef+"\n"), 0o644)
}

func openExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

// AppendReflogLine appends a single pre-formatted line to the reflog
// file for ref name, creating the file (and its directory) if needed.
// Format and ownership of the line contents belong to package reflog;
// this is purely the append-only file primitive from spec.md §6's
// filesystem collaborator.
func (s *RefStore) AppendReflogLine(refName, line string) error {
	logPath := filepath.Join(s.root, "logs", filepath.FromSlash(refName))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return err
	}
	if !strings.HasSuffix(line, "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

// ReadReflogLines returns the raw lines of a ref's reflog file in
// on-disk (chronological) order, or nil if the ref has no reflog.
func (s *RefStore) ReadReflogLines(refName string) ([]string, error) {
	logPath := filepath.Join(s.root, "logs", filepath.FromSlash(refName))
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
