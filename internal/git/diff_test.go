package git

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasehrlich/debug-tree/internal/gittest"
)

func filesByPath(d *Diff) map[string]FileDiff {
	out := map[string]FileDiff{}
	for _, f := range d.Files {
		if f.New != nil {
			out[f.New.Path] = f
		} else {
			out[f.Old.Path] = f
		}
	}
	return out
}

func TestDiffFromEmptyTree(t *testing.T) {
	f := gittest.New(t)
	f.WriteFile("a.txt", "one\ntwo\n")
	f.WriteFile("dir/b.txt", "b\n")
	f.Stage("a.txt")
	f.Stage("dir/b.txt")
	f.Commit("initial")
	repo := New(f.Repo)

	d, err := repo.Diff(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Stats.FilesChanged)
	assert.Equal(t, 3, d.Stats.Insertions)
	assert.Equal(t, 0, d.Stats.Deletions)
	assert.Empty(t, d.OldSources, "additions have no old side")
	assert.Contains(t, d.Patch, "+++ b/a.txt")
	assert.Contains(t, d.Patch, "+++ b/dir/b.txt")
	assert.Contains(t, d.Patch, "+one\n")

	paths := map[string]bool{}
	for _, fd := range d.Files {
		assert.Nil(t, fd.Old)
		require.NotNil(t, fd.New)
		paths[fd.New.Path] = true
		assert.Equal(t, DiffText, fd.DiffType)
		assert.True(t, strings.HasPrefix(fd.Patch, "diff --git "))
	}
	assert.Len(t, paths, d.Stats.FilesChanged)
	assert.Equal(t, "one\ntwo\n", filesByPath(d)["a.txt"].New.Content)
}

func TestDiffBetweenCommits(t *testing.T) {
	f := gittest.New(t)
	f.WriteFile("a.txt", "one\ntwo\nthree\n")
	f.WriteFile("b.txt", "keep\n")
	f.Stage("a.txt")
	f.Stage("b.txt")
	c1 := f.Commit("initial")

	f.WriteFile("a.txt", "one\n2\nthree\nfour\n")
	f.Stage("a.txt")
	f.StageRemoval("b.txt")
	f.WriteFile("c.txt", "new\n")
	f.Stage("c.txt")
	c2 := f.Commit("change")
	repo := New(f.Repo)

	d, err := repo.Diff(context.Background(), ptr(c1.String()), ptr(c2.String()))
	require.NoError(t, err)

	assert.Equal(t, DiffStats{FilesChanged: 3, Insertions: 3, Deletions: 2, TotalOldNumLines: 4}, d.Stats)
	assert.Equal(t, map[string]string{
		"a.txt": "one\ntwo\nthree\n",
		"b.txt": "keep\n",
	}, d.OldSources)
	assert.Contains(t, d.Patch, "-two\n+2\n")
	assert.Contains(t, d.Patch, "+four\n")

	files := filesByPath(d)
	require.Len(t, files, 3)
	assert.Nil(t, files["b.txt"].New)
	assert.Equal(t, "keep\n", files["b.txt"].Old.Content)
	assert.Nil(t, files["c.txt"].Old)
	assert.Equal(t, "one\n2\nthree\nfour\n", files["a.txt"].New.Content)

	t.Run("head defaults to HEAD", func(t *testing.T) {
		same, err := repo.Diff(context.Background(), ptr(c1.String()), nil)
		require.NoError(t, err)
		assert.Equal(t, d.Patch, same.Patch)
	})

	t.Run("identical trees", func(t *testing.T) {
		empty, err := repo.Diff(context.Background(), ptr("HEAD"), ptr("HEAD"))
		require.NoError(t, err)
		assert.Equal(t, "", empty.Patch)
		assert.Equal(t, DiffStats{}, empty.Stats)
		assert.Empty(t, empty.Files)
	})

	t.Run("unknown revision fails", func(t *testing.T) {
		_, err := repo.Diff(context.Background(), ptr("nope"), nil)
		assert.Equal(t, NotFound, KindOf(err))
	})
}

func TestDiffDetectsRenames(t *testing.T) {
	f := gittest.New(t)
	content := "line 1\nline 2\nline 3\nline 4\nline 5\nline 6\nline 7\nline 8\n"
	c1 := f.CommitFile("old.txt", content, "add")
	f.Move("old.txt", "new.txt")
	c2 := f.Commit("rename")
	repo := New(f.Repo)

	d, err := repo.Diff(context.Background(), ptr(c1.String()), ptr(c2.String()))
	require.NoError(t, err)

	require.Len(t, d.Files, 1)
	assert.Equal(t, "old.txt", d.Files[0].Old.Path)
	assert.Equal(t, "new.txt", d.Files[0].New.Path)
	assert.Equal(t, 1, d.Stats.FilesChanged)
	assert.Equal(t, 0, d.Stats.Insertions)
	assert.Equal(t, 0, d.Stats.Deletions)
	assert.Equal(t, content, d.OldSources["old.txt"])
}

func TestDiffBinaryFiles(t *testing.T) {
	f := gittest.New(t)
	c1 := f.CommitFile("blob.bin", "\x00\x01\x02", "binary")
	c2 := f.CommitFile("blob.bin", "\x00\x01\x03", "binary again")
	repo := New(f.Repo)

	d, err := repo.Diff(context.Background(), ptr(c1.String()), ptr(c2.String()))
	require.NoError(t, err)

	require.Len(t, d.Files, 1)
	fd := d.Files[0]
	assert.Equal(t, DiffBinary, fd.DiffType)
	assert.True(t, fd.Old.IsBinary)
	assert.True(t, fd.New.IsBinary)
	assert.Empty(t, fd.Old.Content)
	assert.Empty(t, d.OldSources, "binary content is never embedded")
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("a"))
	assert.Equal(t, 1, countLines("a\n"))
	assert.Equal(t, 2, countLines("a\nb"))
}
