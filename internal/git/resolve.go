package git

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// maxPeelDepth bounds tag-to-tag chains while peeling.
const maxPeelDepth = 16

// refRules is the lookup order git uses to expand a short reference name.
var refRules = []string{
	"%s",
	"refs/%s",
	"refs/tags/%s",
	"refs/heads/%s",
	"refs/remotes/%s",
	"refs/remotes/%s/HEAD",
}

// Resolve turns a revision expression into the id of the object it names.
// Full hashes, HEAD, short reference names and fully qualified reference
// names resolve without peeling, so a tag name yields the tag object for an
// annotated tag. Short hashes and suffix expressions (~, ^, @{}) go through
// the revision grammar and always yield a commit.
func (r *Repository) Resolve(rev string) (ObjectID, error) {
	if err := validateRevision(rev); err != nil {
		return plumbing.ZeroHash, err
	}

	if plumbing.IsHash(rev) {
		h := plumbing.NewHash(rev)
		if _, err := r.repo.Storer.EncodedObject(plumbing.AnyObject, h); err != nil {
			return plumbing.ZeroHash, wrapf(err, "revision %s", rev)
		}
		return h, nil
	}

	if ref, err := r.expandRef(rev); err == nil {
		return ref.Hash(), nil
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, wrapf(err, "revision %s", rev)
	}

	if isHexPrefix(rev) {
		return r.resolvePrefix(rev)
	}

	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, revisionError(rev, err)
	}
	return *h, nil
}

// resolveCommit resolves rev and peels the result down to a commit.
func (r *Repository) resolveCommit(rev string) (*object.Commit, error) {
	h, err := r.Resolve(rev)
	if err != nil {
		return nil, err
	}
	c, err := r.peelToCommit(h)
	if err != nil {
		return nil, fmt.Errorf("revision %s: %w", rev, err)
	}
	return c, nil
}

// CommitForRevision resolves rev to a commit decorated with its references.
func (r *Repository) CommitForRevision(rev string) (*CommitWithReferences, error) {
	c, err := r.resolveCommit(rev)
	if err != nil {
		return nil, err
	}
	idx, err := r.BuildReferenceIndex()
	if err != nil {
		return nil, err
	}
	decorated := decorate(newCommit(c), idx)
	return &decorated, nil
}

// peelToCommit follows tag objects until it reaches a commit.
func (r *Repository) peelToCommit(h ObjectID) (*object.Commit, error) {
	for range maxPeelDepth {
		obj, err := r.repo.Object(plumbing.AnyObject, h)
		if err != nil {
			return nil, wrapf(err, "reading object %s", h)
		}
		switch o := obj.(type) {
		case *object.Commit:
			return o, nil
		case *object.Tag:
			h = o.Target
		default:
			return nil, invalidf("object %s is a %s, not a commit", h, obj.Type())
		}
	}
	return nil, invalidf("tag chain starting at %s is too deep", h)
}

// expandRef applies git's short-name rules and returns the first reference
// found, with symbolic references resolved.
func (r *Repository) expandRef(name string) (*plumbing.Reference, error) {
	for _, rule := range refRules {
		ref, err := storer.ResolveReference(r.repo.Storer, plumbing.ReferenceName(fmt.Sprintf(rule, name)))
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, err
		}
	}
	return nil, plumbing.ErrReferenceNotFound
}

// resolvePrefix finds the single commit whose id starts with prefix.
func (r *Repository) resolvePrefix(prefix string) (ObjectID, error) {
	prefix = strings.ToLower(prefix)
	iter, err := r.repo.CommitObjects()
	if err != nil {
		return plumbing.ZeroHash, wrapf(err, "listing commits")
	}
	defer iter.Close()

	var matches []ObjectID
	err = iter.ForEach(func(c *object.Commit) error {
		if strings.HasPrefix(c.Hash.String(), prefix) {
			matches = append(matches, c.Hash)
			if len(matches) > 1 {
				return storer.ErrStop
			}
		}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, wrapf(err, "scanning commits for %s", prefix)
	}

	switch len(matches) {
	case 0:
		return plumbing.ZeroHash, notFoundf("revision %s not found", prefix)
	case 1:
		return matches[0], nil
	default:
		return plumbing.ZeroHash, invalidf("short object id %s is ambiguous", prefix)
	}
}

// revisionError classifies failures of the revision grammar. Walking past a
// root commit ends in io.EOF. Anything the store did not report as missing
// is a rejected expression.
func revisionError(rev string, err error) error {
	if classify(err) == NotFound || errors.Is(err, io.EOF) {
		return &Error{Kind: NotFound, Msg: fmt.Sprintf("revision %s not found", rev), Err: err}
	}
	return &Error{Kind: Invalid, Msg: fmt.Sprintf("invalid revision %s", rev), Err: err}
}

// validateRevision rejects expressions no revision grammar accepts.
func validateRevision(rev string) error {
	if strings.TrimSpace(rev) == "" {
		return invalidf("empty revision")
	}
	if strings.Contains(rev, "..") {
		return invalidf("invalid revision %q: ranges are not single revisions", rev)
	}
	for _, c := range rev {
		if c < 0x20 || c == 0x7f || strings.ContainsRune(" \\?*[", c) {
			return invalidf("invalid revision %q", rev)
		}
	}
	return nil
}

func isHexPrefix(s string) bool {
	if len(s) < 4 || len(s) >= 40 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
