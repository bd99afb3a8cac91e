package git

import (
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ObjectID identifies a stored object. It is comparable and usable as a map key.
type ObjectID = plumbing.Hash

// CommitProperties is the read-only view shared by plain and decorated commits.
type CommitProperties interface {
	ID() string
	Summary() string
}

var (
	_ CommitProperties = Commit{}
	_ CommitProperties = CommitWithReferences{}
)

type Signature struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is an owned snapshot of a commit object. It never refers back to
// the store it was read from. Time is the committer time.
type Commit struct {
	Hash       string    `json:"id"`
	Title      string    `json:"summary"`
	Body       string    `json:"body"`
	Time       time.Time `json:"time"`
	AuthoredAt time.Time `json:"authoredAt"`
	Author     Signature `json:"author"`
	Committer  Signature `json:"committer"`
}

func (c Commit) ID() string      { return c.Hash }
func (c Commit) Summary() string { return c.Title }

// ShortID returns the first seven characters of the id.
func (c Commit) ShortID() string {
	if len(c.Hash) < 7 {
		return c.Hash
	}
	return c.Hash[:7]
}

func newCommit(c *object.Commit) Commit {
	summary, body := splitMessage(c.Message)
	return Commit{
		Hash:       c.Hash.String(),
		Title:      summary,
		Body:       body,
		Time:       c.Committer.When.UTC(),
		AuthoredAt: c.Author.When.UTC(),
		Author:     Signature{Name: c.Author.Name, Email: c.Author.Email},
		Committer:  Signature{Name: c.Committer.Name, Email: c.Committer.Email},
	}
}

// splitMessage splits a commit message into its summary, the first paragraph
// folded onto one line, and the remaining body.
func splitMessage(msg string) (string, string) {
	msg = strings.TrimLeft(msg, " \t\r\n")
	var summary []string
	rest := ""
	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			rest = strings.Join(lines[i+1:], "\n")
			break
		}
		summary = append(summary, strings.TrimSpace(line))
	}
	return strings.Join(summary, " "), strings.TrimSpace(rest)
}

// CommitWithReferences is a commit decorated with every reference that
// peels to it.
type CommitWithReferences struct {
	Commit
	References []ReferenceMetadata `json:"references"`
}

func decorate(c Commit, idx ReferenceIndex) CommitWithReferences {
	refs := idx.Lookup(plumbing.NewHash(c.Hash))
	if refs == nil {
		refs = []ReferenceMetadata{}
	}
	return CommitWithReferences{Commit: c, References: refs}
}

// ResolvedReference is a reference together with the commit it peels to.
type ResolvedReference struct {
	Name   string        `json:"name"`
	Kind   ReferenceKind `json:"kind"`
	Commit Commit        `json:"commit"`
}

type Branch struct {
	Name string `json:"name"`
	Head Commit `json:"head"`
}

type TaggedCommit struct {
	Tag    string `json:"tag"`
	Commit Commit `json:"commit"`
}

// BranchFromReference fails with Invalid unless ref is a local branch.
func BranchFromReference(ref ResolvedReference) (Branch, error) {
	if ref.Kind != KindBranch {
		return Branch{}, invalidf("reference %s is a %s, not a branch", ref.Name, ref.Kind)
	}
	return Branch{Name: ref.Name, Head: ref.Commit}, nil
}

// TaggedCommitFromReference fails with Invalid unless ref is a tag.
func TaggedCommitFromReference(ref ResolvedReference) (TaggedCommit, error) {
	if ref.Kind != KindTag {
		return TaggedCommit{}, invalidf("reference %s is a %s, not a tag", ref.Name, ref.Kind)
	}
	return TaggedCommit{Tag: ref.Name, Commit: ref.Commit}, nil
}
