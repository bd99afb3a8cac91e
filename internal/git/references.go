package git

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ReferenceKind classifies a reference by its namespace.
type ReferenceKind string

const (
	KindBranch       ReferenceKind = "branch"
	KindTag          ReferenceKind = "tag"
	KindRemoteBranch ReferenceKind = "remotebranch"
	KindNote         ReferenceKind = "note"
)

// ReferenceKinds lists every kind in display order.
var ReferenceKinds = []ReferenceKind{KindBranch, KindRemoteBranch, KindTag, KindNote}

// ParseReferenceKind accepts the JSON names plus the hyphenated and
// underscored spellings of remote branch, case-insensitively.
func ParseReferenceKind(s string) (ReferenceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "branch":
		return KindBranch, nil
	case "tag":
		return KindTag, nil
	case "remotebranch", "remote-branch", "remote_branch":
		return KindRemoteBranch, nil
	case "note":
		return KindNote, nil
	}
	return "", invalidf("unknown reference kind %q", s)
}

// kindOf classifies a reference name. Names outside the four namespaces,
// including HEAD and refs/stash, are not indexed.
func kindOf(name plumbing.ReferenceName) (ReferenceKind, bool) {
	switch {
	case name.IsBranch():
		return KindBranch, true
	case name.IsTag():
		return KindTag, true
	case name.IsRemote():
		return KindRemoteBranch, true
	case name.IsNote():
		return KindNote, true
	}
	return "", false
}

type ReferenceMetadata struct {
	Name string        `json:"name"`
	Kind ReferenceKind `json:"kind"`
}

// ReferenceIndex maps commit ids to the references that peel to them. It is
// a snapshot and does not follow later reference updates.
type ReferenceIndex map[ObjectID][]ReferenceMetadata

// Lookup returns the references pointing at id, ordered by full name.
func (idx ReferenceIndex) Lookup(id ObjectID) []ReferenceMetadata {
	return idx[id]
}

// LookupString parses s as a full object id before looking it up. It fails
// with Invalid for anything that is not a full hex id, whether or not such
// an object exists.
func (idx ReferenceIndex) LookupString(s string) ([]ReferenceMetadata, error) {
	if !plumbing.IsHash(s) {
		return nil, invalidf("%q is not an object id", s)
	}
	return idx.Lookup(plumbing.NewHash(s)), nil
}

// peeledReference is a classified reference with its target commit.
type peeledReference struct {
	name   plumbing.ReferenceName
	kind   ReferenceKind
	commit ObjectID
}

// peeledReferences enumerates every classified reference, resolving symbolic
// references and peeling tags. A reference that cannot be peeled to a commit
// is logged and skipped. Results are sorted by full reference name.
func (r *Repository) peeledReferences(keep func(plumbing.ReferenceName, ReferenceKind) bool) ([]peeledReference, error) {
	iter, err := r.repo.References()
	if err != nil {
		return nil, wrapf(err, "listing references")
	}
	defer iter.Close()

	var out []peeledReference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		kind, ok := kindOf(name)
		if !ok || (keep != nil && !keep(name, kind)) {
			return nil
		}
		if ref.Type() == plumbing.SymbolicReference {
			resolved, err := storer.ResolveReference(r.repo.Storer, name)
			if err != nil {
				r.logger.Warn("skipping dangling symbolic reference", "ref", name.String(), "error", err)
				return nil
			}
			ref = resolved
		}
		c, err := r.peelToCommit(ref.Hash())
		if err != nil {
			r.logger.Warn("skipping reference that does not peel to a commit", "ref", name.String(), "error", err)
			return nil
		}
		out = append(out, peeledReference{name: name, kind: kind, commit: c.Hash})
		return nil
	})
	if err != nil {
		return nil, wrapf(err, "iterating references")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// BuildReferenceIndex indexes every branch, tag, remote branch and note by
// the commit it peels to.
func (r *Repository) BuildReferenceIndex() (ReferenceIndex, error) {
	refs, err := r.peeledReferences(nil)
	if err != nil {
		return nil, err
	}
	idx := make(ReferenceIndex, len(refs))
	for _, ref := range refs {
		idx[ref.commit] = append(idx[ref.commit], ReferenceMetadata{Name: ref.name.Short(), Kind: ref.kind})
	}
	return idx, nil
}

// KindFilter selects references by kind. The zero value admits every kind.
type KindFilter struct {
	mode  filterMode
	kinds map[ReferenceKind]struct{}
}

type filterMode int

const (
	filterNone filterMode = iota
	filterInclude
	filterExclude
)

// NoKindFilter admits every kind.
func NoKindFilter() KindFilter { return KindFilter{} }

// Include admits only the given kinds.
func Include(kinds ...ReferenceKind) KindFilter { return newKindFilter(filterInclude, kinds) }

// Exclude admits every kind except the given ones.
func Exclude(kinds ...ReferenceKind) KindFilter { return newKindFilter(filterExclude, kinds) }

func newKindFilter(mode filterMode, kinds []ReferenceKind) KindFilter {
	set := make(map[ReferenceKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return KindFilter{mode: mode, kinds: set}
}

// NewKindFilter builds a filter from request data where either list may be
// empty. Supplying both is Invalid.
func NewKindFilter(include, exclude []ReferenceKind) (KindFilter, error) {
	switch {
	case len(include) > 0 && len(exclude) > 0:
		return KindFilter{}, invalidf("include and exclude kind filters are mutually exclusive")
	case len(include) > 0:
		return Include(include...), nil
	case len(exclude) > 0:
		return Exclude(exclude...), nil
	}
	return NoKindFilter(), nil
}

// Allows reports whether kind passes the filter.
func (f KindFilter) Allows(kind ReferenceKind) bool {
	_, listed := f.kinds[kind]
	switch f.mode {
	case filterInclude:
		return listed
	case filterExclude:
		return !listed
	}
	return true
}

func (f KindFilter) String() string {
	kinds := make([]string, 0, len(f.kinds))
	for k := range f.kinds {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	switch f.mode {
	case filterInclude:
		return fmt.Sprintf("include(%s)", strings.Join(kinds, ","))
	case filterExclude:
		return fmt.Sprintf("exclude(%s)", strings.Join(kinds, ","))
	}
	return "all"
}

// IterReferences lists the references whose short name contains filter
// (case-sensitive, empty matches all) and whose kind passes kinds.
func (r *Repository) IterReferences(filter string, kinds KindFilter) ([]ResolvedReference, error) {
	refs, err := r.peeledReferences(func(name plumbing.ReferenceName, kind ReferenceKind) bool {
		return kinds.Allows(kind) && strings.Contains(name.Short(), filter)
	})
	if err != nil {
		return nil, err
	}

	out := make([]ResolvedReference, 0, len(refs))
	for _, ref := range refs {
		c, err := r.repo.CommitObject(ref.commit)
		if err != nil {
			return nil, wrapf(err, "reading commit %s", ref.commit)
		}
		out = append(out, ResolvedReference{Name: ref.name.Short(), Kind: ref.kind, Commit: newCommit(c)})
	}
	return out, nil
}

// IterBranches lists local branches whose name contains filter.
func (r *Repository) IterBranches(filter string) ([]Branch, error) {
	refs, err := r.IterReferences(filter, Include(KindBranch))
	if err != nil {
		return nil, err
	}
	out := make([]Branch, 0, len(refs))
	for _, ref := range refs {
		b, err := BranchFromReference(ref)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// IterTags lists tags whose name contains filter.
func (r *Repository) IterTags(filter string) ([]TaggedCommit, error) {
	refs, err := r.IterReferences(filter, Include(KindTag))
	if err != nil {
		return nil, err
	}
	out := make([]TaggedCommit, 0, len(refs))
	for _, ref := range refs {
		t, err := TaggedCommitFromReference(ref)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// referenceExists reports whether name is stored, without resolving it.
func (r *Repository) referenceExists(name plumbing.ReferenceName) (bool, error) {
	_, err := r.repo.Storer.Reference(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return false, nil
	}
	return false, wrapf(err, "reading %s", name)
}
