package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasehrlich/debug-tree/internal/config"
	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/gittest"
	"github.com/jonasehrlich/debug-tree/internal/output"
)

// isolate keeps user configuration and environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfig, filepath.Join(t.TempDir(), "missing.yml"))
	for _, key := range []string{config.EnvRepo, config.EnvListen, config.EnvDebounce, config.EnvRenameScore, config.EnvLogLevel, config.EnvLogFormat} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func newRepo(t *testing.T) *gittest.Fixture {
	t.Helper()
	isolate(t)
	f := gittest.NewOnDisk(t)
	f.CommitFile("a.txt", "one\n", "first commit")
	f.CommitFile("a.txt", "two\n", "second commit")
	return f
}

func TestRootCommand_Version(t *testing.T) {
	isolate(t)
	version = "1.2.3"
	stdout, _, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1.2.3")
	assert.Contains(t, stdout, "debugtree")
}

func TestRootCommand_Help(t *testing.T) {
	isolate(t)
	stdout, _, err := runCLI(t, "--help")
	require.NoError(t, err)
	for _, want := range []string{"debugtree", "Usage:", "--json", "--repo", "status", "serve"} {
		assert.Contains(t, stdout, want)
	}
}

func TestRootCommand_JSONWithoutSubcommand(t *testing.T) {
	f := newRepo(t)
	stdout, _, err := runCLI(t, "--repo", f.Dir, "--json")
	require.Error(t, err)
	assert.Equal(t, output.ExitInvalid, output.GetExitCode(err))

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Contains(t, res["error"], "no command specified")
}

func TestQueryCommands(t *testing.T) {
	f := newRepo(t)

	t.Run("Status", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--repo", f.Dir, "--json", "status")
		require.NoError(t, err)
		var st git.RepositoryStatus
		require.NoError(t, json.Unmarshal([]byte(stdout), &st))
		assert.False(t, st.IsDirty)
		require.NotNil(t, st.CurrentBranch)
		assert.Equal(t, gittest.DefaultBranch, *st.CurrentBranch)
	})

	t.Run("StatusHuman", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--repo", f.Dir, "status")
		require.NoError(t, err)
		assert.Contains(t, stdout, "On branch "+gittest.DefaultBranch)
	})

	t.Run("Log", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--repo", f.Dir, "--json", "log", "--base", "HEAD~1")
		require.NoError(t, err)
		var res struct {
			Commits []git.CommitWithReferences `json:"commits"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &res))
		require.Len(t, res.Commits, 1)
		assert.Equal(t, "second commit", res.Commits[0].Title)
	})

	t.Run("LogHuman", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--repo", f.Dir, "log")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "("+gittest.DefaultBranch+") second commit")
	})

	t.Run("DiffStat", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--repo", f.Dir, "diff", "--base", "HEAD~1", "--stat")
		require.NoError(t, err)
		assert.Contains(t, stdout, "a.txt")
		assert.Contains(t, stdout, "1 files changed, 1 insertions(+), 1 deletions(-)")
	})

	t.Run("Show", func(t *testing.T) {
		stdout, _, err := runCLI(t, "--repo", f.Dir, "--json", "show", "HEAD~1")
		require.NoError(t, err)
		var c git.CommitWithReferences
		require.NoError(t, json.Unmarshal([]byte(stdout), &c))
		assert.Equal(t, "first commit", c.Title)
	})

	t.Run("ShowUnknownRevision", func(t *testing.T) {
		_, stderr, err := runCLI(t, "--repo", f.Dir, "show", "nope")
		require.Error(t, err)
		assert.Equal(t, output.ExitNotFound, output.GetExitCode(err))
		assert.Contains(t, stderr, "Error:")
	})

	t.Run("RefsRejectsBothFilters", func(t *testing.T) {
		_, _, err := runCLI(t, "--repo", f.Dir, "refs", "--include", "tag", "--exclude", "branch")
		require.Error(t, err)
		assert.Equal(t, output.ExitInvalid, output.GetExitCode(err))
	})
}

func TestReferenceCommands(t *testing.T) {
	f := newRepo(t)

	stdout, _, err := runCLI(t, "--repo", f.Dir, "--json", "branch", "create", "feature", "HEAD~1")
	require.NoError(t, err)
	var b git.Branch
	require.NoError(t, json.Unmarshal([]byte(stdout), &b))
	assert.Equal(t, "feature", b.Name)
	assert.Equal(t, "first commit", b.Head.Title)

	_, _, err = runCLI(t, "--repo", f.Dir, "branch", "create", "feature")
	require.Error(t, err)
	assert.Equal(t, output.ExitConflict, output.GetExitCode(err))

	stdout, _, err = runCLI(t, "--repo", f.Dir, "tag", "create", "v1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created tag v1")

	stdout, _, err = runCLI(t, "--repo", f.Dir, "--json", "refs", "--exclude", "branch")
	require.NoError(t, err)
	var refs struct {
		References []git.ResolvedReference `json:"references"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &refs))
	require.Len(t, refs.References, 1)
	assert.Equal(t, "v1", refs.References[0].Name)

	stdout, _, err = runCLI(t, "--repo", f.Dir, "branch", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "feature")
	assert.Contains(t, stdout, gittest.DefaultBranch)

	_, _, err = runCLI(t, "--repo", f.Dir, "checkout", "feature")
	require.NoError(t, err)

	stdout, _, err = runCLI(t, "--repo", f.Dir, "--json", "status")
	require.NoError(t, err)
	var st git.RepositoryStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &st))
	require.NotNil(t, st.CurrentBranch)
	assert.Equal(t, "feature", *st.CurrentBranch)
	assert.False(t, st.IsDirty)
}

func TestInvalidConfiguration(t *testing.T) {
	f := newRepo(t)
	t.Setenv(config.EnvRenameScore, "0")
	_, _, err := runCLI(t, "--repo", f.Dir, "status")
	require.Error(t, err)
	assert.Equal(t, output.ExitInvalid, output.GetExitCode(err))

	t.Setenv(config.EnvRenameScore, "")
	_, _, err = runCLI(t, "--repo", f.Dir, "--log-level", "loud", "status")
	require.Error(t, err)
}

func TestMissingRepository(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "--repo", t.TempDir(), "status")
	require.Error(t, err)
	assert.Equal(t, output.ExitNotFound, output.GetExitCode(err))
}
