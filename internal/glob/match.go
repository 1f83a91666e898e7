// Package glob implements gitignore/shell-style pattern matching against
// "/"-separated repo paths, adapted from antgroup-hugescm's
// modules/wildmatch token-based matcher and scoped down to exactly what
// spec.md §4.2's glob operation needs: a "**" segment wildcard and
// dotfile protection (a wildcard segment never matches a name beginning
// with "." unless the pattern segment itself begins with ".").
package glob

import (
	"path/filepath"
	"strings"
)

// Match reports whether name (a "/"-separated repo path, already
// normalized) matches pattern.
func Match(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	if pat[0] == "**" {
		if matchSegments(pat[1:], name) {
			return true
		}
		if len(name) > 0 && !strings.HasPrefix(name[0], ".") && matchSegments(pat, name[1:]) {
			return true
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	if !matchSegment(pat[0], name[0]) {
		return false
	}
	return matchSegments(pat[1:], name[1:])
}

func isWildcardSegment(seg string) bool {
	return strings.ContainsAny(seg, "*?[")
}

func matchSegment(pat, name string) bool {
	if isWildcardSegment(pat) && strings.HasPrefix(name, ".") && !strings.HasPrefix(pat, ".") {
		return false
	}
	ok, err := filepath.Match(pat, name)
	return err == nil && ok
}
