// Package tree implements the Tree Engine (spec.md §4.2): a set of pure
// functions over the object database that rebuild, read, list, walk and
// stat persistent tree objects, guaranteeing structural sharing of any
// subtree untouched by a given set of writes and removes.
package tree

import "fmt"

// Kind classifies a Tree Engine error.
type Kind int

const (
	_ Kind = iota
	NotFound
	IsADirectory
	NotADirectory
	MaxDepthExceeded
)

// Error is returned by every Tree Engine read operation.
type Error struct {
	Kind Kind
	Path string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tree: %s: %s", e.Path, e.Msg)
}

func errNotFound(path string) error {
	return &Error{Kind: NotFound, Path: path, Msg: "no such file or directory"}
}

func errIsADirectory(path string) error {
	return &Error{Kind: IsADirectory, Path: path, Msg: "is a directory"}
}

func errNotADirectory(path string) error {
	return &Error{Kind: NotADirectory, Path: path, Msg: "not a directory"}
}

// IsNotFound reports whether err is a Tree Engine NotFound error.
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == NotFound
}

// IsIsADirectory reports whether err is a Tree Engine IsADirectory error.
func IsIsADirectory(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == IsADirectory
}

// IsNotADirectory reports whether err is a Tree Engine NotADirectory error.
func IsNotADirectory(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == NotADirectory
}
