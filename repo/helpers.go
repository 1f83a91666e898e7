package repo

import (
	"time"

	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/tree"
)

// canonPath rejects the empty/root path; used by operations that
// address a single file (read, write, remove, rename target).
func canonPath(p string) (string, error) {
	canon, err := vpath.Normalize(p)
	if err != nil {
		return "", wrapPathErr(err)
	}
	return canon, nil
}

// canonPathRoot accepts the empty/root path; used by operations that
// also make sense applied to the whole tree (stat, exists, isdir, walk,
// ls).
func canonPathRoot(p string) (string, error) {
	canon, err := vpath.NormalizeRoot(p)
	if err != nil {
		return "", wrapPathErr(err)
	}
	return canon, nil
}

func wrapPathErr(err error) error {
	if pe, ok := err.(*vpath.Error); ok {
		return errInvalidPath(pe.Error())
	}
	return err
}

// wrapTreeErr maps the Tree Engine's *tree.Error into the facade's own
// *Error kinds, so callers only ever branch on repo.IsKind.
func wrapTreeErr(v []byte, err error) ([]byte, error) {
	return v, wrapTreeErrBare(err)
}

func wrapTreeErrBare(err error) error {
	te, ok := err.(*tree.Error)
	if !ok {
		return err
	}
	switch te.Kind {
	case tree.NotFound:
		return errNotFound(te.Error())
	case tree.IsADirectory:
		return errIsADirectory(te.Error())
	case tree.NotADirectory:
		return &Error{Kind: NotADirectory, Msg: te.Error()}
	default:
		return &Error{Kind: IoError, Msg: te.Error()}
	}
}

func wrapTreeErrEntries(v []tree.Entry, err error) ([]tree.Entry, error) {
	return v, wrapTreeErrBare(err)
}

func wrapTreeErrDirEntries(v []tree.DirEntry, err error) ([]tree.DirEntry, error) {
	return v, wrapTreeErrBare(err)
}

func wrapTreeErrStat(v tree.Stat, err error) (tree.Stat, error) {
	return v, wrapTreeErrBare(err)
}

// zeroTime is used when probing for a path's presence across commits in
// Log, where mtime is irrelevant since only existence/OID are compared.
func zeroTime() time.Time { return time.Time{} }
