package git

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CreateBranch points refs/heads/<name> at the commit revision resolves to.
// An existing branch is replaced only with force, and the branch HEAD is on
// is never replaced.
func (r *Repository) CreateBranch(name, revision string, force bool) (*Branch, error) {
	if err := validateRefName(name); err != nil {
		return nil, err
	}
	c, err := r.resolveCommit(revision)
	if err != nil {
		return nil, err
	}
	if err := r.writeReference(plumbing.NewBranchReferenceName(name), c.Hash, force); err != nil {
		return nil, err
	}
	r.logger.Info("created branch", "name", name, "commit", c.Hash.String(), "force", force)
	return &Branch{Name: name, Head: newCommit(c)}, nil
}

// CreateLightweightTag points refs/tags/<name> at the commit revision
// resolves to. An existing tag is replaced only with force.
func (r *Repository) CreateLightweightTag(name, revision string, force bool) (*TaggedCommit, error) {
	if err := validateRefName(name); err != nil {
		return nil, err
	}
	c, err := r.resolveCommit(revision)
	if err != nil {
		return nil, err
	}
	if err := r.writeReference(plumbing.NewTagReferenceName(name), c.Hash, force); err != nil {
		return nil, err
	}
	r.logger.Info("created tag", "name", name, "commit", c.Hash.String(), "force", force)
	return &TaggedCommit{Tag: name, Commit: newCommit(c)}, nil
}

// writeReference checks every precondition before the single write, so a
// failed call leaves the references untouched.
func (r *Repository) writeReference(name plumbing.ReferenceName, target ObjectID, force bool) error {
	old, err := r.repo.Storer.Reference(name)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		old = nil
	case err != nil:
		return wrapf(err, "reading %s", name)
	case !force:
		return conflictf("%s %s already exists", kindName(name), name.Short())
	}

	if old != nil && name.IsBranch() {
		head, err := r.repo.Storer.Reference(plumbing.HEAD)
		if err != nil {
			return wrapf(err, "reading HEAD")
		}
		if head.Type() == plumbing.SymbolicReference && head.Target() == name {
			return conflictf("cannot force update branch %s, it is the current HEAD", name.Short())
		}
	}

	if err := r.repo.Storer.CheckAndSetReference(plumbing.NewHashReference(name, target), old); err != nil {
		return wrapf(err, "writing %s", name)
	}
	return nil
}

func kindName(name plumbing.ReferenceName) string {
	if kind, ok := kindOf(name); ok {
		return string(kind)
	}
	return "reference"
}

// Checkout updates the index and worktree to the commit revision resolves
// to. A local branch name attaches HEAD to that branch; anything else,
// including tags and remote branches, detaches HEAD. Local changes to
// tracked files abort the checkout with Conflict before anything changes.
func (r *Repository) Checkout(revision string) (*CommitWithReferences, error) {
	c, err := r.resolveCommit(revision)
	if err != nil {
		return nil, err
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return nil, wrapf(err, "opening worktree")
	}
	st, err := w.Status()
	if err != nil {
		return nil, wrapf(err, "computing status")
	}
	if path, dirty := firstTrackedChange(st); dirty {
		return nil, conflictf("cannot check out %s: local changes to %s would be overwritten", revision, path)
	}
	path, clash, err := r.untrackedClash(st, w.Filesystem, c)
	if err != nil {
		return nil, err
	}
	if clash {
		return nil, conflictf("cannot check out %s: untracked file %s would be overwritten", revision, path)
	}

	opts := &gogit.CheckoutOptions{}
	branch, err := r.localBranch(revision)
	if err != nil {
		return nil, err
	}
	if branch != "" {
		opts.Branch = branch
	} else {
		opts.Hash = c.Hash
	}
	if err := w.Checkout(opts); err != nil {
		return nil, wrapf(err, "checking out %s", revision)
	}
	r.logger.Info("checked out", "revision", revision, "commit", c.Hash.String(), "branch", branch.Short())

	return r.CommitForRevision("HEAD")
}

// localBranch returns the branch revision names directly, or "" when it
// names anything else. HEAD names the branch it is attached to.
func (r *Repository) localBranch(revision string) (plumbing.ReferenceName, error) {
	if revision == "HEAD" {
		head, err := r.repo.Storer.Reference(plumbing.HEAD)
		if err != nil {
			return "", wrapf(err, "reading HEAD")
		}
		if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
			return head.Target(), nil
		}
		return "", nil
	}

	name := plumbing.ReferenceName(revision)
	if !name.IsBranch() {
		name = plumbing.NewBranchReferenceName(revision)
	}
	exists, err := r.referenceExists(name)
	if err != nil || !exists {
		return "", err
	}
	return name, nil
}

func firstTrackedChange(st gogit.Status) (string, bool) {
	paths := make([]string, 0, len(st))
	for path := range st {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fs := st[path]
		if changed(fs.Staging) || changed(fs.Worktree) {
			return path, true
		}
	}
	return "", false
}

// untrackedClash finds an untracked file that the tree of c holds with
// different content. Identical files are left alone by the checkout.
func (r *Repository) untrackedClash(st gogit.Status, fs billy.Filesystem, c *object.Commit) (string, bool, error) {
	var untracked []string
	for path, fst := range st {
		if fst.Worktree == gogit.Untracked {
			untracked = append(untracked, path)
		}
	}
	if len(untracked) == 0 {
		return "", false, nil
	}
	sort.Strings(untracked)

	tree, err := c.Tree()
	if err != nil {
		return "", false, wrapf(err, "reading tree of %s", c.Hash)
	}
	for _, path := range untracked {
		entry, err := tree.FindEntry(path)
		if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			continue
		}
		if err != nil {
			return "", false, wrapf(err, "looking up %s", path)
		}
		if !entry.Mode.IsFile() {
			return path, true, nil
		}
		content, err := readWorktreeFile(fs, path)
		if err != nil {
			return "", false, wrapf(err, "reading %s", path)
		}
		if plumbing.ComputeHash(plumbing.BlobObject, content) != entry.Hash {
			return path, true, nil
		}
	}
	return "", false, nil
}

func changed(c gogit.StatusCode) bool {
	return c != gogit.Unmodified && c != gogit.Untracked
}

// validateRefName applies git's check-ref-format rules to a branch or tag
// name.
func validateRefName(name string) error {
	bad := func(reason string) error {
		return invalidf("invalid reference name %q: %s", name, reason)
	}
	switch {
	case name == "":
		return bad("empty")
	case name == "@" || name == "HEAD":
		return bad("reserved name")
	case strings.HasPrefix(name, "-"):
		return bad("starts with a dash")
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return bad("starts or ends with a slash")
	case strings.HasSuffix(name, "."):
		return bad("ends with a dot")
	case strings.Contains(name, ".."), strings.Contains(name, "//"), strings.Contains(name, "@{"):
		return bad("contains a forbidden sequence")
	}
	for _, c := range name {
		if c < 0x20 || c == 0x7f || strings.ContainsRune(" ~^:?*[\\", c) {
			return bad("contains a forbidden character")
		}
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".lock") {
			return bad("component starts with a dot or ends with .lock")
		}
	}
	return nil
}
