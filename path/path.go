// Package path implements canonical path normalization and name validation
// for the versioned object store: repo-relative paths, ref names and
// hex object identifiers. Nothing here touches the filesystem or the
// object store; it is pure string processing consumed by every other
// package.
package path

import (
	"fmt"
	"strings"
)

// Kind classifies a validation failure so callers can branch on it
// without string matching.
type Kind int

const (
	_ Kind = iota
	InvalidPath
	InvalidRefName
	InvalidHash
)

// Error is returned by every validator in this package.
type Error struct {
	Kind  Kind
	Input string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %q: %s", e.kindName(), e.Input, e.Msg)
}

func (e *Error) kindName() string {
	switch e.Kind {
	case InvalidPath:
		return "invalid path"
	case InvalidRefName:
		return "invalid ref name"
	case InvalidHash:
		return "invalid hash"
	default:
		return "invalid"
	}
}

func errf(kind Kind, input, msg string) error {
	return &Error{Kind: kind, Input: input, Msg: msg}
}

// Normalize canonicalizes a repo-relative path: it strips one leading and
// one trailing slash, collapses interior "." segments, and rejects empty
// segments and ".." segments. The empty/root path is only valid when the
// caller explicitly allows it via NormalizeRoot.
func Normalize(p string) (string, error) {
	canon, err := normalize(p)
	if err != nil {
		return "", err
	}
	if canon == "" {
		return "", errf(InvalidPath, p, "empty path")
	}
	return canon, nil
}

// NormalizeRoot is like Normalize but accepts the empty/root path,
// returning "" for it. Used by operations documented as root-accepting
// (stat, exists, isdir, walk, ls, objectHash).
func NormalizeRoot(p string) (string, error) {
	return normalize(p)
}

func normalize(p string) (string, error) {
	trimmed := strings.TrimPrefix(p, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return "", nil
	}
	rawSegments := strings.Split(trimmed, "/")
	segments := make([]string, 0, len(rawSegments))
	for _, seg := range rawSegments {
		switch seg {
		case "":
			return "", errf(InvalidPath, p, "empty segment (double slash)")
		case ".":
			continue
		case "..":
			return "", errf(InvalidPath, p, "'..' segment is not allowed")
		default:
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "/"), nil
}

// Segments splits an already-normalized path into its segments. The root
// path ("") splits into an empty slice.
func Segments(canon string) []string {
	if canon == "" {
		return nil
	}
	return strings.Split(canon, "/")
}

// Join joins a normalized parent path with a single segment name.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Dir and Base mimic path.Dir/path.Base for normalized repo paths,
// operating on "/"-joined segments rather than filesystem semantics.
func Dir(canon string) string {
	idx := strings.LastIndexByte(canon, '/')
	if idx < 0 {
		return ""
	}
	return canon[:idx]
}

func Base(canon string) string {
	idx := strings.LastIndexByte(canon, '/')
	if idx < 0 {
		return canon
	}
	return canon[idx+1:]
}

var refNameBadBytes = [256]bool{}

func init() {
	for c := 0; c < 0x20; c++ {
		refNameBadBytes[c] = true
	}
	refNameBadBytes[0x7f] = true
	for _, c := range []byte{':', ' ', '\t', '\n', '?', '[', '\\', '^', '~', '*'} {
		refNameBadBytes[c] = true
	}
}

// ValidateRefName validates a ref name against git's refname rules,
// generalized to branch/tag/notes-namespace names consumed by this
// store: non-empty, no control characters or the listed punctuation,
// no "..", no leading/trailing slash, no "@{", no trailing ".lock" or
// "/", and no component equal to or ending with "." (a component may
// begin with ".").
func ValidateRefName(name string) error {
	if name == "" {
		return errf(InvalidRefName, name, "empty ref name")
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return errf(InvalidRefName, name, "leading or trailing slash")
	}
	if strings.HasSuffix(name, ".lock") {
		return errf(InvalidRefName, name, "ends in .lock")
	}
	if strings.Contains(name, "..") {
		return errf(InvalidRefName, name, "contains '..'")
	}
	if strings.Contains(name, "@{") {
		return errf(InvalidRefName, name, "contains '@{'")
	}
	for i := 0; i < len(name); i++ {
		if refNameBadBytes[name[i]] {
			return errf(InvalidRefName, name, fmt.Sprintf("contains disallowed byte 0x%02x", name[i]))
		}
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" {
			return errf(InvalidRefName, name, "empty path component")
		}
		if seg == "." || strings.HasSuffix(seg, ".") {
			return errf(InvalidRefName, name, "component ends in '.'")
		}
	}
	return nil
}

// ValidateHexOID validates a 40-character lowercase hexadecimal object
// identifier (SHA-1, as used by the git-compatible object store).
func ValidateHexOID(s string) error {
	if len(s) != 40 {
		return errf(InvalidHash, s, "must be exactly 40 characters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return errf(InvalidHash, s, "must be lowercase hexadecimal")
		}
	}
	return nil
}
