// Package repo is the top-level facade (spec.md §4.4-§4.9): Repository,
// Snapshot and Batch compose the Tree Engine, Change Detector, Ref
// Updater, Notes and Reflog packages into the public API callers use.
// Grounded on antgroup-hugescm's pkg/zeta.Worktree as the facade that
// composes its lower-level object/refs/reflog packages the same way.
package repo

import "fmt"

// Kind classifies a repo-facade error, per spec.md §7.
type Kind int

const (
	_ Kind = iota
	PermissionError
	NotFound
	IsADirectory
	NotADirectory
	InvalidPath
	InvalidArgument
	BatchClosed
	KeyNotFound
	KeyExists
	IoError
	ObjectStoreError
)

// Error is returned by every repo-facade operation that can fail for a
// reason other than StaleSnapshotError (which is refs.StaleSnapshotError,
// surfaced unchanged per spec.md §4.6).
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("repo: %s", e.Msg)
}

func errPermission(msg string) error      { return &Error{Kind: PermissionError, Msg: msg} }
func errNotFound(msg string) error        { return &Error{Kind: NotFound, Msg: msg} }
func errIsADirectory(msg string) error    { return &Error{Kind: IsADirectory, Msg: msg} }
func errInvalidPath(msg string) error     { return &Error{Kind: InvalidPath, Msg: msg} }
func errInvalidArgument(msg string) error { return &Error{Kind: InvalidArgument, Msg: msg} }
func errBatchClosed() error               { return &Error{Kind: BatchClosed, Msg: "batch already committed or aborted"} }

// IsKind reports whether err is a repo *Error of the given kind.
func IsKind(err error, k Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}
