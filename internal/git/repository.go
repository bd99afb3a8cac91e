// Package git is the repository query layer of debug-tree. It resolves
// revisions, walks commit ranges, indexes references, computes tree diffs
// and reconciles HEAD, index and worktree into a status report.
//
// A Repository is not safe for concurrent use; callers serialise access.
package git

import (
	"unicode/utf8"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/jonasehrlich/debug-tree/internal/logging"
)

// DefaultRenameScore is the similarity percentage above which a deleted and
// an added file are paired as a rename.
const DefaultRenameScore = 50

type Repository struct {
	repo        *gogit.Repository
	logger      logging.Logger
	renameScore uint
}

type Option func(*Repository)

func WithLogger(l logging.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRenameScore sets the rename similarity threshold, clamped to 1..100.
func WithRenameScore(score uint) Option {
	return func(r *Repository) {
		switch {
		case score == 0:
			r.renameScore = 1
		case score > 100:
			r.renameScore = 100
		default:
			r.renameScore = score
		}
	}
}

// New wraps an already opened go-git repository.
func New(repo *gogit.Repository, opts ...Option) *Repository {
	r := &Repository{
		repo:        repo,
		logger:      logging.Nop(),
		renameScore: DefaultRenameScore,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open opens the repository containing path, searching parent directories
// for the .git directory.
func Open(path string, opts ...Option) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, wrapf(err, "opening repository at %s", path)
	}
	return New(repo, opts...), nil
}

// Init creates a new non-bare repository at path.
func Init(path string, opts ...Option) (*Repository, error) {
	repo, err := gogit.PlainInit(path, false)
	if err != nil {
		return nil, wrapf(err, "initialising repository at %s", path)
	}
	return New(repo, opts...), nil
}

// Root returns the worktree root of an on-disk repository, or "" when the
// repository has no worktree.
func (r *Repository) Root() string {
	w, err := r.repo.Worktree()
	if err != nil {
		return ""
	}
	return w.Filesystem.Root()
}

// CurrentBranchName returns the short name of the branch HEAD points to.
// It returns nil when HEAD is detached or the name is not valid UTF-8.
// An unborn branch still has a name.
func (r *Repository) CurrentBranchName() (*string, error) {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return nil, wrapf(err, "reading HEAD")
	}
	if head.Type() != plumbing.SymbolicReference {
		return nil, nil
	}
	target := head.Target()
	if !target.IsBranch() || !utf8.ValidString(target.String()) {
		return nil, nil
	}
	name := target.Short()
	return &name, nil
}

// IsDetachedHead reports whether HEAD points directly at a commit.
func (r *Repository) IsDetachedHead() (bool, error) {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return false, wrapf(err, "reading HEAD")
	}
	return head.Type() == plumbing.HashReference, nil
}
