// Package session owns the repository handle. Every operation runs under the
// session lock, so at most one go-git call touches the repository at a time.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/logging"
)

// Session is the single owner of a repository handle.
type Session struct {
	path   string
	repo   *git.Repository
	logger logging.Logger
	mu     sync.Mutex
}

// Open opens the repository containing path.
func Open(path string, logger logging.Logger, opts ...git.Option) (*Session, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	repo, err := git.Open(path, append([]git.Option{git.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return New(repo, logger), nil
}

// New wraps an already opened repository.
func New(repo *git.Repository, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Session{repo: repo, logger: logger, path: repo.Root()}
}

// Path returns the worktree root, or "" for repositories without one.
func (s *Session) Path() string {
	return s.path
}

// call runs fn with exclusive access to the repository. A context that is
// already done, or finishes while waiting for the lock, stops the operation
// before it starts.
func call[T any](ctx context.Context, s *Session, op string, fn func(*git.Repository) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	start := time.Now()
	v, err := fn(s.repo)
	if err != nil {
		s.logger.Debug("git operation failed", "op", op, "duration", time.Since(start), "error", err)
		return zero, err
	}
	s.logger.Debug("git operation", "op", op, "duration", time.Since(start))
	return v, nil
}

// ListCommitsOptions bounds a commit listing. Nil revisions take the walk
// defaults.
type ListCommitsOptions struct {
	Base   *string
	Head   *string
	Filter string
}

func (s *Session) GetRevision(ctx context.Context, rev string) (*git.CommitWithReferences, error) {
	return call(ctx, s, "get revision", func(r *git.Repository) (*git.CommitWithReferences, error) {
		return r.CommitForRevision(rev)
	})
}

func (s *Session) CheckoutRevision(ctx context.Context, rev string) (*git.CommitWithReferences, error) {
	return call(ctx, s, "checkout", func(r *git.Repository) (*git.CommitWithReferences, error) {
		return r.Checkout(rev)
	})
}

func (s *Session) ListCommits(ctx context.Context, opts ListCommitsOptions) ([]git.CommitWithReferences, error) {
	return call(ctx, s, "list commits", func(r *git.Repository) ([]git.CommitWithReferences, error) {
		return r.ListCommits(opts.Base, opts.Head, opts.Filter)
	})
}

func (s *Session) GetDiff(ctx context.Context, base, head *string) (*git.Diff, error) {
	return call(ctx, s, "diff", func(r *git.Repository) (*git.Diff, error) {
		return r.Diff(ctx, base, head)
	})
}

func (s *Session) ListTags(ctx context.Context, filter string) ([]git.TaggedCommit, error) {
	return call(ctx, s, "list tags", func(r *git.Repository) ([]git.TaggedCommit, error) {
		return r.IterTags(filter)
	})
}

func (s *Session) CreateTag(ctx context.Context, name, rev string, force bool) (*git.TaggedCommit, error) {
	return call(ctx, s, "create tag", func(r *git.Repository) (*git.TaggedCommit, error) {
		return r.CreateLightweightTag(name, rev, force)
	})
}

func (s *Session) ListBranches(ctx context.Context, filter string) ([]git.Branch, error) {
	return call(ctx, s, "list branches", func(r *git.Repository) ([]git.Branch, error) {
		return r.IterBranches(filter)
	})
}

func (s *Session) CreateBranch(ctx context.Context, name, rev string, force bool) (*git.Branch, error) {
	return call(ctx, s, "create branch", func(r *git.Repository) (*git.Branch, error) {
		return r.CreateBranch(name, rev, force)
	})
}

func (s *Session) ListReferences(ctx context.Context, filter string, kinds git.KindFilter) ([]git.ResolvedReference, error) {
	return call(ctx, s, "list references", func(r *git.Repository) ([]git.ResolvedReference, error) {
		return r.IterReferences(filter, kinds)
	})
}

func (s *Session) Status(ctx context.Context) (*git.RepositoryStatus, error) {
	return call(ctx, s, "status", func(r *git.Repository) (*git.RepositoryStatus, error) {
		return r.Status()
	})
}

func (s *Session) CurrentBranch(ctx context.Context) (*string, error) {
	return call(ctx, s, "current branch", func(r *git.Repository) (*string, error) {
		return r.CurrentBranchName()
	})
}
