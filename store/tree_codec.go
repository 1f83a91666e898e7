package store

import (
	"bytes"
	"fmt"
	"sort"
)

// TreeEntry is one line of a tree object: a name, its mode, and the OID
// of the blob or subtree it names.
type TreeEntry struct {
	Name string
	Mode FileMode
	OID  OID
}

// sortName returns the name used for subtree-order comparison: a
// trailing "/" for subtrees so that e.g. "foo" (a file) sorts before
// "foo.txt" but "foo" (a directory, compared as "foo/") sorts after it
// -- matching git's fsck.c tree order (spec.md §4.2 Ordering).
func (e TreeEntry) sortName() string {
	if e.Mode.IsTree() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries orders entries in the canonical git tree order: bytewise
// comparison of names, with directory names treated as ending in "/".
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sortName() < entries[j].sortName()
	})
}

// EncodeTree renders entries (which must already be in canonical order)
// as a git tree object body: repeated "<mode> <name>\0<20-byte raw oid>".
func EncodeTree(entries []TreeEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s %s\x00", e.Mode.octal(), e.Name)
		buf.Write(e.OID[:])
	}
	return buf.Bytes()
}

// DecodeTree parses a git tree object body into its entries, in the
// order they appear on disk (already canonical if written by this
// store or by conformant git tooling).
func DecodeTree(body []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for len(body) > 0 {
		sp := bytes.IndexByte(body, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("store: malformed tree entry: missing mode separator")
		}
		mode, ok := parseOctalMode(string(body[:sp]))
		if !ok {
			return nil, fmt.Errorf("store: malformed tree entry: bad mode %q", body[:sp])
		}
		body = body[sp+1:]
		nul := bytes.IndexByte(body, 0)
		if nul < 0 {
			return nil, fmt.Errorf("store: malformed tree entry: missing name terminator")
		}
		name := string(body[:nul])
		body = body[nul+1:]
		if len(body) < 20 {
			return nil, fmt.Errorf("store: malformed tree entry: truncated oid")
		}
		var oid OID
		copy(oid[:], body[:20])
		body = body[20:]
		entries = append(entries, TreeEntry{Name: name, Mode: mode, OID: oid})
	}
	return entries, nil
}

// Find returns the entry named name, or false if absent.
func Find(entries []TreeEntry, name string) (TreeEntry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}
