package git

import (
	"errors"
	"io"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasehrlich/debug-tree/internal/gittest"
)

func readFile(t *testing.T, f *gittest.Fixture, path string) string {
	t.Helper()
	file, err := f.FS.Open(path)
	require.NoError(t, err)
	defer file.Close()
	b, err := io.ReadAll(file)
	require.NoError(t, err)
	return string(b)
}

func twoCommits(t *testing.T) (*gittest.Fixture, *Repository, ObjectID, ObjectID) {
	t.Helper()
	f := gittest.New(t)
	first := f.CommitFile("a.txt", "one\n", "first")
	second := f.CommitFile("a.txt", "two\n", "second")
	return f, New(f.Repo), first, second
}

func TestCreateBranch(t *testing.T) {
	_, repo, first, second := twoCommits(t)

	b, err := repo.CreateBranch("feature", "HEAD~1", false)
	require.NoError(t, err)
	assert.Equal(t, "feature", b.Name)
	assert.Equal(t, first.String(), b.Head.ID())

	t.Run("existing name without force conflicts", func(t *testing.T) {
		_, err := repo.CreateBranch("feature", "HEAD", false)
		assert.True(t, errors.Is(err, ErrConflict))
		got, err := repo.Resolve("feature")
		require.NoError(t, err)
		assert.Equal(t, first, got, "branch unchanged")
	})

	t.Run("force moves the branch", func(t *testing.T) {
		b, err := repo.CreateBranch("feature", "HEAD", true)
		require.NoError(t, err)
		assert.Equal(t, second.String(), b.Head.ID())
		got, err := repo.Resolve("feature")
		require.NoError(t, err)
		assert.Equal(t, second, got)
	})

	t.Run("current branch is never forced", func(t *testing.T) {
		_, err := repo.CreateBranch(gittest.DefaultBranch, first.String(), true)
		assert.True(t, errors.Is(err, ErrConflict))
		got, err := repo.Resolve(gittest.DefaultBranch)
		require.NoError(t, err)
		assert.Equal(t, second, got)
	})

	t.Run("unknown revision creates nothing", func(t *testing.T) {
		_, err := repo.CreateBranch("orphan", "nope", false)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = repo.Resolve("orphan")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "bad name", "a..b", "x.lock", "-x", "dir/", ".hidden", "a~1", "HEAD", "a@{b"} {
			_, err := repo.CreateBranch(name, "HEAD", false)
			assert.True(t, errors.Is(err, ErrInvalid), "%q: %v", name, err)
		}
	})

	t.Run("nested names are allowed", func(t *testing.T) {
		_, err := repo.CreateBranch("fix/issue-1", "HEAD", false)
		require.NoError(t, err)
	})
}

func TestCreateLightweightTag(t *testing.T) {
	f, repo, first, second := twoCommits(t)

	tag, err := repo.CreateLightweightTag("v1", first.String(), false)
	require.NoError(t, err)
	assert.Equal(t, "v1", tag.Tag)
	assert.Equal(t, first.String(), tag.Commit.ID())

	ref, err := f.Repo.Storer.Reference(plumbing.NewTagReferenceName("v1"))
	require.NoError(t, err)
	assert.Equal(t, first, ref.Hash(), "lightweight tags point straight at the commit")

	_, err = repo.CreateLightweightTag("v1", "HEAD", false)
	assert.True(t, errors.Is(err, ErrConflict))

	tag, err = repo.CreateLightweightTag("v1", "HEAD", true)
	require.NoError(t, err)
	assert.Equal(t, second.String(), tag.Commit.ID())

	t.Run("annotated tags peel before tagging", func(t *testing.T) {
		f.AnnotatedTag("release", first, "release")
		tag, err := repo.CreateLightweightTag("release-copy", "release", false)
		require.NoError(t, err)
		assert.Equal(t, first.String(), tag.Commit.ID())
	})
}

func TestCheckout(t *testing.T) {
	f, repo, first, second := twoCommits(t)

	t.Run("raw hash detaches", func(t *testing.T) {
		c, err := repo.Checkout(first.String())
		require.NoError(t, err)
		assert.Equal(t, first.String(), c.ID())
		assert.Equal(t, "one\n", readFile(t, f, "a.txt"))

		detached, err := repo.IsDetachedHead()
		require.NoError(t, err)
		assert.True(t, detached)
		branch, err := repo.CurrentBranchName()
		require.NoError(t, err)
		assert.Nil(t, branch)
	})

	t.Run("branch name attaches", func(t *testing.T) {
		c, err := repo.Checkout(gittest.DefaultBranch)
		require.NoError(t, err)
		assert.Equal(t, second.String(), c.ID())
		assert.Equal(t, []ReferenceMetadata{{Name: gittest.DefaultBranch, Kind: KindBranch}}, c.References)

		detached, err := repo.IsDetachedHead()
		require.NoError(t, err)
		assert.False(t, detached)
		branch, err := repo.CurrentBranchName()
		require.NoError(t, err)
		require.NotNil(t, branch)
		assert.Equal(t, gittest.DefaultBranch, *branch)
	})

	t.Run("tags detach", func(t *testing.T) {
		f.Tag("v1", first)
		_, err := repo.Checkout("v1")
		require.NoError(t, err)
		detached, err := repo.IsDetachedHead()
		require.NoError(t, err)
		assert.True(t, detached)
		_, err = repo.Checkout(gittest.DefaultBranch)
		require.NoError(t, err)
	})

	t.Run("untracked files the target tracks conflict", func(t *testing.T) {
		f.Switch("feature", true)
		f.CommitFile("new.txt", "theirs\n", "add new.txt")
		f.Switch(gittest.DefaultBranch, false)

		f.WriteFile("new.txt", "mine\n")
		_, err := repo.Checkout("feature")
		assert.True(t, errors.Is(err, ErrConflict), "%v", err)
		assert.Equal(t, second, f.Head())
		assert.Equal(t, "mine\n", readFile(t, f, "new.txt"))

		f.WriteFile("new.txt", "theirs\n")
		_, err = repo.Checkout("feature")
		require.NoError(t, err, "identical content does not block")
		_, err = repo.Checkout(gittest.DefaultBranch)
		require.NoError(t, err)
	})

	t.Run("local changes conflict and nothing moves", func(t *testing.T) {
		f.WriteFile("a.txt", "dirty\n")
		_, err := repo.Checkout(first.String())
		assert.True(t, errors.Is(err, ErrConflict))
		assert.Equal(t, second, f.Head())
		assert.Equal(t, "dirty\n", readFile(t, f, "a.txt"))
	})

	t.Run("unknown revision", func(t *testing.T) {
		_, err := repo.Checkout("nope")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
