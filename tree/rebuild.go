package tree

import (
	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/store"
)

const maxTreeDepth = 1024

// writeNode is one node of the trie built from a scoped set of writes
// and removes, keyed by path segment. Only paths that are actually
// touched get a node; everything else is passed through from the base
// tree untouched, which is what gives RebuildTree its structural
// sharing guarantee.
type writeNode struct {
	leaf     *WriteEntry
	remove   bool
	children map[string]*writeNode
}

func buildWriteTrie(writes map[string]WriteEntry, removes map[string]struct{}) *writeNode {
	root := &writeNode{}
	for p, w := range writes {
		w := w
		insertNode(root, vpath.Segments(p), func(n *writeNode) {
			n.leaf = &w
			n.remove = false
		})
	}
	// Removes are inserted after writes so that a path present in both
	// maps resolves with "remove wins", per spec.md §4.2.
	for p := range removes {
		insertNode(root, vpath.Segments(p), func(n *writeNode) {
			n.remove = true
			n.leaf = nil
		})
	}
	return root
}

func insertNode(root *writeNode, segments []string, set func(*writeNode)) {
	node := root
	for i, seg := range segments {
		if node.children == nil {
			node.children = make(map[string]*writeNode)
		}
		child, ok := node.children[seg]
		if !ok {
			child = &writeNode{}
			node.children[seg] = child
		}
		if i == len(segments)-1 {
			set(child)
		}
		node = child
	}
}

// RebuildTree rebuilds base with writes applied and removes stripped,
// returning the new root tree OID. If nothing actually changes, the
// returned OID equals base bit-for-bit -- guaranteed naturally here
// because the OID of an unmodified subtree is recomputed from the same
// entries and the content-addressed store dedupes to the same value.
func RebuildTree(s store.ObjectStore, base store.OID, writes map[string]WriteEntry, removes map[string]struct{}) (store.OID, error) {
	if len(writes) == 0 && len(removes) == 0 {
		return base, nil
	}
	trie := buildWriteTrie(writes, removes)
	newOID, nonEmpty, err := rebuildSubtree(s, base, trie, 0)
	if err != nil {
		return store.OID{}, err
	}
	if !nonEmpty {
		if base.IsZero() {
			return base, nil // no base tree and nothing written
		}
		return s.WriteTree(nil) // whole tree emptied out: the empty tree object
	}
	return newOID, nil
}

// rebuildSubtree rebuilds the subtree at baseOID (zero OID meaning "no
// base subtree exists here") according to trie, returning the new OID
// and whether the resulting subtree is non-empty (false means "prune
// this entry from the parent").
func rebuildSubtree(s store.ObjectStore, baseOID store.OID, trie *writeNode, depth int) (store.OID, bool, error) {
	if depth > maxTreeDepth {
		return store.OID{}, false, &Error{Kind: MaxDepthExceeded, Msg: "maximum tree depth exceeded"}
	}

	var baseEntries []store.TreeEntry
	if !baseOID.IsZero() {
		entries, err := s.ReadTree(baseOID)
		if err != nil {
			return store.OID{}, false, err
		}
		baseEntries = entries
	}

	handled := make(map[string]bool, len(trie.children))
	result := make([]store.TreeEntry, 0, len(baseEntries)+len(trie.children))

	for _, e := range baseEntries {
		child, touched := trie.children[e.Name]
		if !touched {
			result = append(result, e) // untouched: structural sharing
			continue
		}
		handled[e.Name] = true
		entry, keep, err := resolveChild(s, e.Name, &e, child, depth)
		if err != nil {
			return store.OID{}, false, err
		}
		if keep {
			result = append(result, entry)
		}
	}
	for name, child := range trie.children {
		if handled[name] {
			continue
		}
		entry, keep, err := resolveChild(s, name, nil, child, depth)
		if err != nil {
			return store.OID{}, false, err
		}
		if keep {
			result = append(result, entry)
		}
	}

	if len(result) == 0 {
		return store.OID{}, false, nil
	}
	store.SortEntries(result)
	newOID, err := s.WriteTree(result)
	if err != nil {
		return store.OID{}, false, err
	}
	return newOID, true, nil
}

// resolveChild decides what (if anything) replaces baseEntry (which may
// be nil, meaning the name is new) at a path touched by the write trie.
func resolveChild(s store.ObjectStore, name string, baseEntry *store.TreeEntry, node *writeNode, depth int) (store.TreeEntry, bool, error) {
	if node.remove {
		return store.TreeEntry{}, false, nil
	}
	if node.leaf != nil {
		entry, err := writeLeaf(s, name, node.leaf)
		return entry, true, err
	}
	if len(node.children) > 0 {
		var childBase store.OID
		if baseEntry != nil && baseEntry.Mode.IsTree() {
			childBase = baseEntry.OID
		}
		// else: baseEntry is absent or a blob being promoted to a tree;
		// start the subtree fresh (blob-to-tree promotion, spec.md §4.2).
		newOID, nonEmpty, err := rebuildSubtree(s, childBase, node, depth+1)
		if err != nil {
			return store.TreeEntry{}, false, err
		}
		if !nonEmpty {
			return store.TreeEntry{}, false, nil
		}
		return store.TreeEntry{Name: name, Mode: store.ModeTree, OID: newOID}, true, nil
	}
	if baseEntry != nil {
		return *baseEntry, true, nil
	}
	return store.TreeEntry{}, false, nil
}

func writeLeaf(s store.ObjectStore, name string, entry *WriteEntry) (store.TreeEntry, error) {
	switch entry.kind {
	case symlinkKind:
		oid, err := s.WriteBlob([]byte(entry.target))
		if err != nil {
			return store.TreeEntry{}, err
		}
		return store.TreeEntry{Name: name, Mode: store.ModeSymlink, OID: oid}, nil
	case preHashedKind:
		return store.TreeEntry{Name: name, Mode: normalizeMode(entry.mode), OID: entry.oid}, nil
	default: // blobDataKind
		oid, err := s.WriteBlob(entry.data)
		if err != nil {
			return store.TreeEntry{}, err
		}
		return store.TreeEntry{Name: name, Mode: normalizeMode(entry.mode), OID: oid}, nil
	}
}
