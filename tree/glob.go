package tree

import (
	"sort"

	"github.com/mhalle/vost/internal/glob"
	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/store"
)

// Glob returns every path (file or directory) under root matching
// pattern, sorted lexicographically. Dotfile protection and the "**"
// segment wildcard follow spec.md §4.2.
func Glob(s store.ObjectStore, root store.OID, pattern string) ([]string, error) {
	var matches []string
	it, err := NewWalkIter(s, root, "")
	if err != nil {
		return nil, err
	}
	for {
		de, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for _, d := range de.Dirs {
			p := vpath.Join(de.Path, d)
			if glob.Match(pattern, p) {
				matches = append(matches, p)
			}
		}
		for _, f := range de.Files {
			p := vpath.Join(de.Path, f.Name)
			if glob.Match(pattern, p) {
				matches = append(matches, p)
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// Iglob is the lazy counterpart to Glob: it returns an iterator that
// yields matching paths one at a time in walk order rather than
// pre-sorted. Callers that want the sorted contract of spec.md §4.2
// should use Glob; Iglob exists for the same reason WalkIter does --
// large trees where buffering every match up front is wasteful.
type IglobIter struct {
	walk    *WalkIter
	pattern string
	pending []string
}

func NewIglobIter(s store.ObjectStore, root store.OID, pattern string) (*IglobIter, error) {
	it, err := NewWalkIter(s, root, "")
	if err != nil {
		return nil, err
	}
	return &IglobIter{walk: it, pattern: pattern}, nil
}

func (g *IglobIter) Next() (string, bool, error) {
	for len(g.pending) == 0 {
		de, ok, err := g.walk.Next()
		if err != nil {
			return "", false, err
		}
		if !ok {
			return "", false, nil
		}
		for _, d := range de.Dirs {
			p := vpath.Join(de.Path, d)
			if glob.Match(g.pattern, p) {
				g.pending = append(g.pending, p)
			}
		}
		for _, f := range de.Files {
			p := vpath.Join(de.Path, f.Name)
			if glob.Match(g.pattern, p) {
				g.pending = append(g.pending, p)
			}
		}
	}
	p := g.pending[0]
	g.pending = g.pending[1:]
	return p, true, nil
}
