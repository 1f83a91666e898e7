package store

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FilesystemStore is a loose-object-only git-compatible ObjectStore,
// grounded on modules/git/gitobj/object_db.go: each object is stored at
// objects/<first-2-hex>/<remaining-38-hex> as a zlib-deflated
// "<type> <len>\0<body>" stream keyed by its own SHA-1 digest. Writes
// are staged to a temp file in the same directory and renamed into
// place so a reader never observes a partially-written object.
type FilesystemStore struct {
	root string // path to the ".../objects" directory
}

// NewFilesystemStore opens (and, if necessary, creates) a loose object
// store rooted at objectsDir.
func NewFilesystemStore(objectsDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(objectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create objects dir: %w", err)
	}
	return &FilesystemStore{root: objectsDir}, nil
}

func (s *FilesystemStore) objectPath(oid OID) string {
	hexs := oid.String()
	return filepath.Join(s.root, hexs[:2], hexs[2:])
}

// Exists reports whether a loose object is present under oid.
func (s *FilesystemStore) Exists(oid OID) (bool, error) {
	_, err := os.Stat(s.objectPath(oid))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FilesystemStore) write(typ ObjectType, body []byte) (OID, error) {
	oid := HashObject(typ, body)
	dest := s.objectPath(oid)
	if exists, err := s.Exists(oid); err != nil {
		return oid, err
	} else if exists {
		return oid, nil // content-addressed: identical object already stored
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oid, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "tmp-obj-"+uuid.NewString())
	if err != nil {
		return oid, fmt.Errorf("store: create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	zw := zlib.NewWriter(tmp)
	if _, err := zw.Write(objectHeader(typ, len(body))); err != nil {
		_ = tmp.Close()
		return oid, err
	}
	if _, err := zw.Write(body); err != nil {
		_ = tmp.Close()
		return oid, err
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return oid, err
	}
	if err := tmp.Close(); err != nil {
		return oid, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return oid, fmt.Errorf("store: rename temp object into place: %w", err)
	}
	return oid, nil
}

func (s *FilesystemStore) read(oid OID, want ObjectType) ([]byte, error) {
	typ, body, err := s.readAny(oid)
	if err != nil {
		return nil, err
	}
	if typ != want {
		return nil, fmt.Errorf("store: object %s has type %s, want %s", oid, typ, want)
	}
	return body, nil
}

func (s *FilesystemStore) readAny(oid OID) (ObjectType, []byte, error) {
	f, err := os.Open(s.objectPath(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(bufio.NewReader(f))
	if err != nil {
		return 0, nil, fmt.Errorf("store: inflate object %s: %w", oid, err)
	}
	defer zr.Close()

	all, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("store: read object %s: %w", oid, err)
	}
	nul := bytes.IndexByte(all, 0)
	if nul < 0 {
		return 0, nil, fmt.Errorf("store: object %s missing header terminator", oid)
	}
	header := string(all[:nul])
	var typeName string
	var size int
	if _, err := fmt.Sscanf(header, "%s %d", &typeName, &size); err != nil {
		return 0, nil, fmt.Errorf("store: object %s malformed header %q", oid, header)
	}
	typ, ok := objectTypeFromString(typeName)
	if !ok {
		return 0, nil, fmt.Errorf("store: object %s unknown type %q", oid, typeName)
	}
	body := all[nul+1:]
	if len(body) != size {
		return 0, nil, fmt.Errorf("store: object %s size mismatch: header says %d, got %d", oid, size, len(body))
	}
	return typ, body, nil
}

func (s *FilesystemStore) WriteBlob(data []byte) (OID, error) {
	return s.write(BlobObject, data)
}

func (s *FilesystemStore) ReadBlob(oid OID) ([]byte, error) {
	return s.read(oid, BlobObject)
}

func (s *FilesystemStore) BlobSize(oid OID) (int64, error) {
	body, err := s.read(oid, BlobObject)
	if err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

func (s *FilesystemStore) ReadTree(oid OID) ([]TreeEntry, error) {
	body, err := s.read(oid, TreeObject)
	if err != nil {
		return nil, err
	}
	return DecodeTree(body)
}

func (s *FilesystemStore) WriteTree(entries []TreeEntry) (OID, error) {
	return s.write(TreeObject, EncodeTree(entries))
}

func (s *FilesystemStore) ReadCommit(oid OID) (*Commit, error) {
	body, err := s.read(oid, CommitObject)
	if err != nil {
		return nil, err
	}
	return DecodeCommit(body)
}

func (s *FilesystemStore) WriteCommit(c *Commit) (OID, error) {
	return s.write(CommitObject, EncodeCommit(c))
}

var _ ObjectStore = (*FilesystemStore)(nil)
