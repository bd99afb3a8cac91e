package main

import (
	"github.com/spf13/cobra"

	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/session"
)

// optional maps an empty flag value to "not given".
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Long: `Show the current branch, the HEAD commit and every changed path,
split into staged changes, unstaged changes and conflicts.

Examples:
  debugtree status
  debugtree status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			st, err := s.Status(cmd.Context())
			if err != nil {
				return fail(p, err)
			}
			return p.Status(st)
		},
	}
}

func newLogCmd(a *app) *cobra.Command {
	var base, head, filter string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List commits between two revisions",
		Long: `List the commits reachable from --head but not from --base, newest
first, decorated with the references pointing at them.

Examples:
  debugtree log
  debugtree log --base v1.0 --head main
  debugtree log --filter "fix"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			commits, err := s.ListCommits(cmd.Context(), session.ListCommitsOptions{
				Base:   optional(base),
				Head:   optional(head),
				Filter: filter,
			})
			if err != nil {
				return fail(p, err)
			}
			return p.Commits(commits)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "Exclude commits reachable from this revision")
	cmd.Flags().StringVar(&head, "head", "", "Start from this revision (default HEAD)")
	cmd.Flags().StringVar(&filter, "filter", "", "Only commits whose id or summary contains this text")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	var base, head string
	var stat bool
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff the trees of two revisions",
		Long: `Show the changes between the tree of --base and the tree of --head.
Without --base the diff starts from the empty tree.

Examples:
  debugtree diff --base HEAD~1
  debugtree diff --base v1.0 --head v2.0 --stat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			d, err := s.GetDiff(cmd.Context(), optional(base), optional(head))
			if err != nil {
				return fail(p, err)
			}
			return p.Diff(d, stat)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "Old side revision (default: empty tree)")
	cmd.Flags().StringVar(&head, "head", "", "New side revision (default HEAD)")
	cmd.Flags().BoolVar(&stat, "stat", false, "Only list changed files and totals")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [revision]",
		Short: "Show a single commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			c, err := s.GetRevision(cmd.Context(), rev)
			if err != nil {
				return fail(p, err)
			}
			return p.Commit(c)
		},
	}
}

func newRefsCmd(a *app) *cobra.Command {
	var filter string
	var include, exclude []string
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "List references",
		Long: `List branches, remote branches, tags and notes with the commit each
points at. --include and --exclude take kinds: branch, remotebranch, tag, note.

Examples:
  debugtree refs
  debugtree refs --include tag
  debugtree refs --exclude note,remotebranch --filter release`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd)
			kinds, err := kindFilter(include, exclude)
			if err != nil {
				return fail(p, err)
			}
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			refs, err := s.ListReferences(cmd.Context(), filter, kinds)
			if err != nil {
				return fail(p, err)
			}
			return p.References(refs)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only references whose short name contains this text")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Only these kinds")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "All kinds except these")
	return cmd
}

func kindFilter(include, exclude []string) (git.KindFilter, error) {
	parse := func(names []string) ([]git.ReferenceKind, error) {
		var kinds []git.ReferenceKind
		for _, n := range names {
			k, err := git.ParseReferenceKind(n)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
		return kinds, nil
	}
	inc, err := parse(include)
	if err != nil {
		return git.KindFilter{}, err
	}
	exc, err := parse(exclude)
	if err != nil {
		return git.KindFilter{}, err
	}
	return git.NewKindFilter(inc, exc)
}
