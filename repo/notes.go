package repo

import (
	vpath "github.com/mhalle/vost/path"
	"github.com/mhalle/vost/notes"
)

// Notes returns a handle on the given notes namespace
// (refs/notes/<name>); the ref need not exist yet.
func (r *Repository) Notes(name string) *notes.Namespace {
	return notes.Open(name, r.objs, r.refStore, r.lock, r.log, r.cfg, r.componentLogger("notes"))
}

// ResolveCommitish turns target — a 40-hex commit hash, a branch name,
// or a tag name — into the commit hash Notes operations key on, per
// spec.md §4.8's "target resolves to a commit OID" contract. Passing a
// *Snapshot's CommitHash() directly also satisfies this.
func (r *Repository) ResolveCommitish(target string) (string, error) {
	if vpath.ValidateHexOID(target) == nil {
		return target, nil
	}
	if oid, ok, err := r.refStore.ReadRef("refs/heads/" + target); err != nil {
		return "", err
	} else if ok {
		return oid.String(), nil
	}
	if oid, ok, err := r.refStore.ReadRef("refs/tags/" + target); err != nil {
		return "", err
	} else if ok {
		return oid.String(), nil
	}
	return "", errNotFound("no commit, branch, or tag named: " + target)
}

// GetForCurrentBranch reads namespace's note for the current tip of
// branch.
func (r *Repository) GetForCurrentBranch(namespace, branch string) (string, error) {
	hash, err := r.ResolveCommitish(branch)
	if err != nil {
		return "", err
	}
	return r.Notes(namespace).Get(hash)
}

// SetForCurrentBranch writes namespace's note for the current tip of
// branch.
func (r *Repository) SetForCurrentBranch(namespace, branch, text string) error {
	hash, err := r.ResolveCommitish(branch)
	if err != nil {
		return err
	}
	return r.Notes(namespace).Set(hash, text)
}
