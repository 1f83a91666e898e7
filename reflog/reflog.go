// Package reflog implements the Reflog & History module (spec.md §4.8):
// an append-only per-ref log of (old, new, committer, message) entries
// that backs undo(n)/redo(n). Grounded on antgroup-hugescm's
// modules/zeta/reflog package, adapted from its packed in-memory
// Entries/Push/Drop model to the append-only line format the spec calls
// for, reusing the parent repository's store.RefStore for the actual
// file I/O.
package reflog

import (
	"fmt"
	"strings"

	"github.com/mhalle/vost/store"
)

// Entry is one reflog record: the ref's value before and after an
// update, who made it, when, and the commit message (or an operation
// label such as "undo 2").
type Entry struct {
	Old       store.OID
	New       store.OID
	Committer store.Signature
	Message   string
}

// DB reads and appends reflog entries for a repository's refs, layered
// on top of store.RefStore's append-only file primitive.
type DB struct {
	refs *store.RefStore
}

func NewDB(refs *store.RefStore) *DB {
	return &DB{refs: refs}
}

// Append adds one entry to name's reflog, in chronological (append)
// order.
func (d *DB) Append(name string, e Entry) error {
	return d.refs.AppendReflogLine(name, formatLine(e))
}

func formatLine(e Entry) string {
	msg := strings.ReplaceAll(e.Message, "\n", " ")
	return fmt.Sprintf("%s %s %s\t%s", e.Old, e.New, e.Committer.String(), msg)
}

func parseLine(line string) (Entry, error) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("reflog: unparsable line %q", line)
	}
	oldOID, err := store.ParseOID(fields[0])
	if err != nil {
		return Entry{}, fmt.Errorf("reflog: malformed old oid: %w", err)
	}
	newOID, err := store.ParseOID(fields[1])
	if err != nil {
		return Entry{}, fmt.Errorf("reflog: malformed new oid: %w", err)
	}
	rest := fields[2]
	signature := rest
	message := ""
	if tab := strings.IndexByte(rest, '\t'); tab != -1 {
		signature = rest[:tab]
		message = rest[tab+1:]
	}
	sig, err := store.ParseSignature(signature)
	if err != nil {
		return Entry{}, fmt.Errorf("reflog: malformed signature: %w", err)
	}
	return Entry{Old: oldOID, New: newOID, Committer: sig, Message: message}, nil
}

// Log returns a ref's reflog entries in reverse-chronological order
// (most recent first), matching `git reflog`'s display order.
func (d *DB) Log(name string) ([]Entry, error) {
	lines, err := d.refs.ReadReflogLines(name)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
