// Package gittest builds small repositories for tests. Commits get
// deterministic timestamps one minute apart unless a time is given.
package gittest

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// DefaultBranch is the branch go-git points HEAD at on init.
const DefaultBranch = "master"

// Epoch is the time of the first fixture commit.
var Epoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

type Fixture struct {
	t        testing.TB
	Repo     *gogit.Repository
	Worktree *gogit.Worktree
	FS       billy.Filesystem
	// Dir is the worktree root for on-disk fixtures, "" for in-memory ones.
	Dir   string
	clock time.Time
}

// New creates an empty repository held in memory.
func New(t testing.TB) *Fixture {
	t.Helper()
	fs := memfs.New()
	repo, err := gogit.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	return newFixture(t, repo, "")
}

// NewOnDisk creates an empty repository in a temporary directory.
func NewOnDisk(t testing.TB) *Fixture {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return newFixture(t, repo, dir)
}

func newFixture(t testing.TB, repo *gogit.Repository, dir string) *Fixture {
	w, err := repo.Worktree()
	require.NoError(t, err)
	return &Fixture{t: t, Repo: repo, Worktree: w, FS: w.Filesystem, Dir: dir, clock: Epoch}
}

// WriteFile writes content to path in the worktree, creating directories.
func (f *Fixture) WriteFile(path, content string) {
	f.t.Helper()
	require.NoError(f.t, util.WriteFile(f.FS, path, []byte(content), 0o644))
}

func (f *Fixture) Remove(path string) {
	f.t.Helper()
	require.NoError(f.t, f.FS.Remove(path))
}

// Rename moves a file in the worktree without touching the index.
func (f *Fixture) Rename(from, to string) {
	f.t.Helper()
	require.NoError(f.t, f.FS.Rename(from, to))
}

// Stage adds path to the index.
func (f *Fixture) Stage(path string) {
	f.t.Helper()
	_, err := f.Worktree.Add(path)
	require.NoError(f.t, err)
}

// StageRemoval removes path from the index and the worktree.
func (f *Fixture) StageRemoval(path string) {
	f.t.Helper()
	_, err := f.Worktree.Remove(path)
	require.NoError(f.t, err)
}

// Move renames a tracked file and stages both sides, like git mv.
func (f *Fixture) Move(from, to string) {
	f.t.Helper()
	_, err := f.Worktree.Move(from, to)
	require.NoError(f.t, err)
}

// Signature returns the fixture identity at the given time.
func Signature(when time.Time) *object.Signature {
	return &object.Signature{Name: "Debug Tree", Email: "debug-tree@example.com", When: when}
}

// Commit records the index as a new commit one minute after the previous one.
func (f *Fixture) Commit(msg string) plumbing.Hash {
	f.t.Helper()
	f.clock = f.clock.Add(time.Minute)
	return f.CommitAt(msg, f.clock)
}

// CommitAt records the index as a new commit with author and committer time when.
func (f *Fixture) CommitAt(msg string, when time.Time) plumbing.Hash {
	f.t.Helper()
	return f.commit(msg, when, nil)
}

// Merge records a commit whose parents are HEAD and other.
func (f *Fixture) Merge(msg string, other plumbing.Hash) plumbing.Hash {
	f.t.Helper()
	f.clock = f.clock.Add(time.Minute)
	head, err := f.Repo.Head()
	require.NoError(f.t, err)
	return f.commit(msg, f.clock, []plumbing.Hash{head.Hash(), other})
}

func (f *Fixture) commit(msg string, when time.Time, parents []plumbing.Hash) plumbing.Hash {
	sig := Signature(when)
	h, err := f.Worktree.Commit(msg, &gogit.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	require.NoError(f.t, err)
	return h
}

// CommitFile writes, stages and commits a single file.
func (f *Fixture) CommitFile(path, content, msg string) plumbing.Hash {
	f.t.Helper()
	f.WriteFile(path, content)
	f.Stage(path)
	return f.Commit(msg)
}

// Head returns the commit HEAD points at.
func (f *Fixture) Head() plumbing.Hash {
	f.t.Helper()
	ref, err := f.Repo.Head()
	require.NoError(f.t, err)
	return ref.Hash()
}

// SetRef writes a hash reference directly.
func (f *Fixture) SetRef(name string, h plumbing.Hash) {
	f.t.Helper()
	require.NoError(f.t, f.Repo.Storer.SetReference(plumbing.NewHashReference(plumbing.ReferenceName(name), h)))
}

// Branch creates refs/heads/<name> at h.
func (f *Fixture) Branch(name string, h plumbing.Hash) {
	f.t.Helper()
	f.SetRef(plumbing.NewBranchReferenceName(name).String(), h)
}

// Tag creates a lightweight tag at h.
func (f *Fixture) Tag(name string, h plumbing.Hash) {
	f.t.Helper()
	f.SetRef(plumbing.NewTagReferenceName(name).String(), h)
}

// AnnotatedTag creates an annotated tag object for h and returns its id.
func (f *Fixture) AnnotatedTag(name string, h plumbing.Hash, msg string) plumbing.Hash {
	f.t.Helper()
	ref, err := f.Repo.CreateTag(name, h, &gogit.CreateTagOptions{
		Tagger:  Signature(f.clock),
		Message: msg,
	})
	require.NoError(f.t, err)
	return ref.Hash()
}

// Switch checks out an existing branch, or creates it at HEAD when create is set.
func (f *Fixture) Switch(branch string, create bool) {
	f.t.Helper()
	require.NoError(f.t, f.Worktree.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	}))
}

// Detach checks out h without a branch.
func (f *Fixture) Detach(h plumbing.Hash) {
	f.t.Helper()
	require.NoError(f.t, f.Worktree.Checkout(&gogit.CheckoutOptions{Hash: h}))
}
