package git

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasehrlich/debug-tree/internal/gittest"
)

func ptr(s string) *string { return &s }

func ids(commits []CommitWithReferences) []string {
	out := make([]string, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.ID())
	}
	return out
}

// linearWithBranch makes five commits on master and five more on foo.
func linearWithBranch(t *testing.T) (*gittest.Fixture, []ObjectID) {
	t.Helper()
	f := gittest.New(t)
	var hashes []ObjectID
	for i := 1; i <= 5; i++ {
		hashes = append(hashes, f.CommitFile("file.txt", fmt.Sprintf("%d\n", i), fmt.Sprintf("commit %d", i)))
	}
	f.Switch("foo", true)
	for i := 6; i <= 10; i++ {
		hashes = append(hashes, f.CommitFile("file.txt", fmt.Sprintf("%d\n", i), fmt.Sprintf("commit %d", i)))
	}
	f.Switch(gittest.DefaultBranch, false)
	return f, hashes
}

func TestWalkRanges(t *testing.T) {
	f, hashes := linearWithBranch(t)
	repo := New(f.Repo)

	t.Run("head defaults to HEAD", func(t *testing.T) {
		commits, err := repo.ListCommits(nil, nil, "")
		require.NoError(t, err)
		assert.Len(t, commits, 5)
		assert.Equal(t, hashes[4].String(), commits[0].ID())
		assert.Equal(t, hashes[0].String(), commits[4].ID())
	})

	t.Run("branch heads", func(t *testing.T) {
		commits, err := repo.ListCommits(nil, ptr("foo"), "")
		require.NoError(t, err)
		assert.Len(t, commits, 10)

		commits, err = repo.ListCommits(nil, ptr(gittest.DefaultBranch), "")
		require.NoError(t, err)
		assert.Len(t, commits, 5)
	})

	t.Run("base excludes its ancestors", func(t *testing.T) {
		commits, err := repo.ListCommits(ptr(hashes[2].String()), nil, "")
		require.NoError(t, err)
		assert.Equal(t, []string{hashes[4].String(), hashes[3].String()}, ids(commits))

		commits, err = repo.ListCommits(ptr(gittest.DefaultBranch), ptr("foo"), "")
		require.NoError(t, err)
		assert.Len(t, commits, 5)
		assert.Equal(t, hashes[9].String(), commits[0].ID())
	})

	t.Run("base ahead of head is empty", func(t *testing.T) {
		commits, err := repo.ListCommits(ptr("foo"), ptr(gittest.DefaultBranch), "")
		require.NoError(t, err)
		assert.Empty(t, commits)
	})

	t.Run("newest first without duplicates", func(t *testing.T) {
		commits, err := repo.ListCommits(nil, ptr("foo"), "")
		require.NoError(t, err)
		seen := map[string]bool{}
		for i, c := range commits {
			assert.False(t, seen[c.ID()], "duplicate %s", c.ID())
			seen[c.ID()] = true
			if i > 0 {
				assert.True(t, c.Time.Before(commits[i-1].Time))
			}
		}
	})

	t.Run("commits carry their references", func(t *testing.T) {
		commits, err := repo.ListCommits(nil, ptr("foo"), "")
		require.NoError(t, err)
		assert.Equal(t, []ReferenceMetadata{{Name: "foo", Kind: KindBranch}}, commits[0].References)
		assert.Equal(t, []ReferenceMetadata{{Name: gittest.DefaultBranch, Kind: KindBranch}}, commits[5].References)
		assert.Equal(t, []ReferenceMetadata{}, commits[1].References)
	})

	t.Run("resolution failures abort", func(t *testing.T) {
		_, err := repo.Walk(nil, ptr("nope"))
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = repo.Walk(ptr("nope"), nil)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = repo.ListCommits(ptr("a..b"), nil, "")
		assert.True(t, errors.Is(err, ErrInvalid))
	})
}

func TestListCommitsFilter(t *testing.T) {
	f, hashes := linearWithBranch(t)
	repo := New(f.Repo)

	commits, err := repo.ListCommits(nil, ptr("foo"), "COMMIT 1")
	require.NoError(t, err)
	assert.Equal(t, []string{hashes[9].String(), hashes[0].String()}, ids(commits), "matches commit 10 and commit 1")

	commits, err = repo.ListCommits(nil, nil, hashes[3].String()[:8])
	require.NoError(t, err)
	assert.Equal(t, []string{hashes[3].String()}, ids(commits))

	commits, err = repo.ListCommits(nil, nil, "no such commit")
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestWalkMerges(t *testing.T) {
	f := gittest.New(t)
	a := f.CommitFile("a.txt", "a\n", "a")
	b := f.CommitFile("a.txt", "b\n", "b")
	f.Branch("side", a)
	f.Switch("side", false)
	s1 := f.CommitFile("s.txt", "s\n", "s1")
	f.Switch(gittest.DefaultBranch, false)
	c := f.CommitFile("a.txt", "c\n", "c")
	m := f.Merge("merge side", s1)
	repo := New(f.Repo)

	commits, err := repo.ListCommits(nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{m.String(), c.String(), s1.String(), b.String(), a.String()}, ids(commits))

	commits, err = repo.ListCommits(ptr("side"), nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{m.String(), c.String(), b.String()}, ids(commits))

	commits, err = repo.ListCommits(ptr(b.String()), ptr("side"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{s1.String()}, ids(commits))
}

func TestWalkEqualTimestampsKeepGraphOrder(t *testing.T) {
	f := gittest.New(t)
	x1 := f.CommitAt("x1", gittest.Epoch)
	x2 := f.CommitAt("x2", gittest.Epoch)
	x3 := f.CommitAt("x3", gittest.Epoch)
	repo := New(f.Repo)

	commits, err := repo.ListCommits(nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{x3.String(), x2.String(), x1.String()}, ids(commits))
}

func TestWalkIsLazy(t *testing.T) {
	f, hashes := linearWithBranch(t)
	repo := New(f.Repo)

	walk, err := repo.Walk(nil, ptr("foo"))
	require.NoError(t, err)
	c, err := walk.Next()
	require.NoError(t, err)
	assert.Equal(t, hashes[9], c.Hash)
	assert.Equal(t, 1, walk.queue.Size(), "only the parent of the first commit is queued")

	var seen []ObjectID
	err = walk.ForEach(func(c *object.Commit) error {
		seen = append(seen, c.Hash)
		if len(seen) == 3 {
			return storer.ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []ObjectID{hashes[8], hashes[7], hashes[6]}, seen)

	_, err = walk.Next()
	assert.Equal(t, io.EOF, err, "ForEach closes the walk")
}

func TestWalkWithBaseReadsOnlyTheRange(t *testing.T) {
	f, hashes := linearWithBranch(t)
	repo := New(f.Repo)

	walk, err := repo.Walk(ptr("foo~1"), ptr("foo"))
	require.NoError(t, err)
	assert.Len(t, walk.nodes, 2, "only the tip and the base are read up front")

	c, err := walk.Next()
	require.NoError(t, err)
	assert.Equal(t, hashes[9], c.Hash)
	assert.Len(t, walk.nodes, 2)

	_, err = walk.Next()
	assert.Equal(t, io.EOF, err)
	assert.LessOrEqual(t, len(walk.nodes), 3, "the hidden side stops once nothing interesting is queued")
}

func TestWalkBaseReachedLate(t *testing.T) {
	f := gittest.New(t)
	a := f.CommitFile("a.txt", "a\n", "a")
	f.Branch("side", a)
	b := f.CommitFile("a.txt", "b\n", "b")
	f.Switch("side", false)
	s1 := f.CommitFile("s.txt", "s\n", "s1")
	s2 := f.CommitFile("s.txt", "s2\n", "s2")
	repo := New(f.Repo)

	commits, err := repo.ListCommits(ptr(b.String()), ptr(s2.String()), "")
	require.NoError(t, err)
	assert.Equal(t, []string{s2.String(), s1.String()}, ids(commits), "a is shared with the base and excluded")
}
