package git

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasehrlich/debug-tree/internal/gittest"
)

func alterFirst(s string) string {
	c := byte('0')
	if s[0] == '0' {
		c = '1'
	}
	return string(c) + s[1:]
}

func TestResolve(t *testing.T) {
	f := gittest.New(t)
	first := f.CommitFile("a.txt", "one\n", "first")
	second := f.CommitFile("a.txt", "two\n", "second")
	f.Tag("v1", first)
	annotated := f.AnnotatedTag("v2", second, "release v2")
	repo := New(f.Repo)

	t.Run("full hash resolves to itself", func(t *testing.T) {
		for _, h := range []ObjectID{first, second, annotated} {
			got, err := repo.Resolve(h.String())
			require.NoError(t, err)
			assert.Equal(t, h, got)
		}
	})

	t.Run("symbolic names", func(t *testing.T) {
		for rev, want := range map[string]ObjectID{
			"HEAD":              second,
			"master":            second,
			"refs/heads/master": second,
			"v1":                first,
			"HEAD~1":            first,
			"master^":           first,
			second.String()[:7]: second,
			first.String()[:10]: first,
		} {
			got, err := repo.Resolve(rev)
			require.NoError(t, err, rev)
			assert.Equal(t, want, got, rev)
		}
	})

	t.Run("annotated tag resolves to the tag and peels to the commit", func(t *testing.T) {
		got, err := repo.Resolve("v2")
		require.NoError(t, err)
		assert.Equal(t, annotated, got)

		c, err := repo.CommitForRevision("v2")
		require.NoError(t, err)
		assert.Equal(t, second.String(), c.ID())
		assert.Equal(t, "second", c.Summary())
	})

	t.Run("altered hash is not found", func(t *testing.T) {
		altered := alterFirst(second.String())
		for _, rev := range []string{altered, altered[:7], altered[:8]} {
			_, err := repo.Resolve(rev)
			require.Error(t, err, rev)
			assert.True(t, errors.Is(err, ErrNotFound), "%s: %v", rev, err)
		}
	})

	t.Run("missing names are not found", func(t *testing.T) {
		for _, rev := range []string{"nope", "refs/heads/nope", "HEAD~5"} {
			_, err := repo.Resolve(rev)
			assert.Equal(t, NotFound, KindOf(err), rev)
		}
	})

	t.Run("malformed expressions are invalid", func(t *testing.T) {
		for _, rev := range []string{"", "   ", "a..b", "bad name", "what?", "HEAD^{"} {
			_, err := repo.Resolve(rev)
			assert.Equal(t, Invalid, KindOf(err), rev)
		}
	})
}

func TestResolveUnbornHead(t *testing.T) {
	repo := New(gittest.New(t).Repo)

	_, err := repo.Resolve("HEAD")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveCommitRejectsTrees(t *testing.T) {
	f := gittest.New(t)
	h := f.CommitFile("a.txt", "one\n", "first")
	c, err := f.Repo.CommitObject(h)
	require.NoError(t, err)
	repo := New(f.Repo)

	_, err = repo.CommitForRevision(c.TreeHash.String())
	assert.Equal(t, Invalid, KindOf(err))
}

func TestSplitMessage(t *testing.T) {
	for _, tc := range []struct {
		msg, summary, body string
	}{
		{"subject", "subject", ""},
		{"subject\n", "subject", ""},
		{"subject\n\nbody line\n", "subject", "body line"},
		{"wrapped\nsubject\n\nfirst\n\nsecond\n", "wrapped subject", "first\n\nsecond"},
		{"\n\n  leading\n", "leading", ""},
	} {
		summary, body := splitMessage(tc.msg)
		assert.Equal(t, tc.summary, summary, tc.msg)
		assert.Equal(t, tc.body, body, tc.msg)
	}
}
