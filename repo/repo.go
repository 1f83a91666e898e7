package repo

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mhalle/vost/config"
	"github.com/mhalle/vost/reflog"
	"github.com/mhalle/vost/refs"
	"github.com/mhalle/vost/store"
)

// Clock abstracts commit timestamps so tests can be deterministic, per
// spec.md §9's "commit identity timestamps" design note.
type Clock func() time.Time

// Repository is a bare content-addressed object store with named refs,
// the root every Snapshot is derived from. Repository outlives every
// Snapshot it produces.
type Repository struct {
	root     string
	objs     store.ObjectStore
	refStore *store.RefStore
	lock     *refs.RepoLock
	log      *reflog.DB
	cfg      *config.Config
	clock    Clock
	logger   *logrus.Logger
}

// Option configures a Repository at Open/Init time.
type Option func(*Repository)

// WithClock overrides the commit timestamp source; tests should always
// set this to a fixed function.
func WithClock(c Clock) Option {
	return func(r *Repository) { r.clock = c }
}

// WithLogger overrides the default logrus logger.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func defaultRepository(root string) *Repository {
	return &Repository{
		root:   root,
		clock:  time.Now,
		logger: logrus.StandardLogger(),
	}
}

// Init creates a new repository at root: the objects directory and HEAD
// pointing at refs/heads/<defaultBranch> ("main" if empty; the branch
// itself is not yet created). No config file is written; an existing
// one is loaded.
func Init(root string, defaultBranch string, opts ...Option) (*Repository, error) {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	objs, err := store.NewFilesystemStore(filepath.Join(root, "objects"))
	if err != nil {
		return nil, err
	}
	refStore := store.NewRefStore(root)
	if err := refStore.WriteHEAD("refs/heads/" + defaultBranch); err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	r := defaultRepository(root)
	r.objs = objs
	r.refStore = refStore
	r.lock = refs.NewRepoLock(root)
	r.log = reflog.NewDB(refStore)
	r.cfg = cfg
	for _, opt := range opts {
		opt(r)
	}
	r.componentLogger("repo").WithField("root", root).WithField("default_branch", defaultBranch).Info("initialized repository")
	return r, nil
}

// Open opens an existing repository at root.
func Open(root string, opts ...Option) (*Repository, error) {
	objs, err := store.NewFilesystemStore(filepath.Join(root, "objects"))
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	refStore := store.NewRefStore(root)

	r := defaultRepository(root)
	r.objs = objs
	r.refStore = refStore
	r.lock = refs.NewRepoLock(root)
	r.log = reflog.NewDB(refStore)
	r.cfg = cfg
	for _, opt := range opts {
		opt(r)
	}
	r.componentLogger("repo").WithField("root", root).Info("opened repository")
	return r, nil
}

// identity returns a store.Signature for the current instant, stamped
// with the repository's configured committer identity and the
// repository's clock.
func (r *Repository) identity() store.Signature {
	u := r.cfg.Identity()
	return store.Signature{Name: u.Name, Email: u.Email, When: r.clock()}
}

// componentLogger returns a *logrus.Entry tagged with component, the
// convention every package under repo uses to thread the injected
// logger through the Ref Updater.
func (r *Repository) componentLogger(component string) *logrus.Entry {
	return r.logger.WithField("component", component)
}

// Branch returns a writable Snapshot pinned to the current tip of
// branch, creating an empty initial commit if the branch does not yet
// exist.
func (r *Repository) Branch(name string) (*Snapshot, error) {
	refName := "refs/heads/" + name
	tip, ok, err := r.refStore.ReadRef(refName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r.initBranch(refName)
	}
	commit, err := r.objs.ReadCommit(tip)
	if err != nil {
		return nil, err
	}
	return &Snapshot{repo: r, commitOID: tip, treeOID: commit.Tree, refName: refName, writable: true}, nil
}

func (r *Repository) initBranch(refName string) (*Snapshot, error) {
	treeOID, err := r.objs.WriteTree(nil)
	if err != nil {
		return nil, err
	}
	sig := r.identity()
	commit := &store.Commit{Tree: treeOID, Author: sig, Committer: sig, Message: "No changes"}
	result, err := refs.Advance(r.lock, r.objs, r.refStore, r.log, r.componentLogger("refs"), refName, store.OID{}, sig, func(confirmedTip store.OID) (store.OID, store.OID, string, error) {
		oid, err := r.objs.WriteCommit(commit)
		if err != nil {
			return store.OID{}, store.OID{}, "", err
		}
		return oid, treeOID, commit.Message, nil
	})
	if err != nil {
		return nil, err
	}
	return &Snapshot{repo: r, commitOID: result.Tip, treeOID: result.Tree, refName: refName, writable: true}, nil
}

// Tag returns a read-only Snapshot pinned to a tag's commit.
func (r *Repository) Tag(name string) (*Snapshot, error) {
	tip, ok, err := r.refStore.ReadRef("refs/tags/" + name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotFound("no such tag: " + name)
	}
	commit, err := r.objs.ReadCommit(tip)
	if err != nil {
		return nil, err
	}
	return &Snapshot{repo: r, commitOID: tip, treeOID: commit.Tree, writable: false}, nil
}

// AtCommit returns a read-only Snapshot pinned to an arbitrary commit
// OID, bypassing refs entirely.
func (r *Repository) AtCommit(oid store.OID) (*Snapshot, error) {
	commit, err := r.objs.ReadCommit(oid)
	if err != nil {
		return nil, err
	}
	return &Snapshot{repo: r, commitOID: oid, treeOID: commit.Tree, writable: false}, nil
}
