package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "List or create local branches",
	}

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List local branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			branches, err := s.ListBranches(cmd.Context(), filter)
			if err != nil {
				return fail(p, err)
			}
			return p.Branches(branches)
		},
	}
	list.Flags().StringVar(&filter, "filter", "", "Only branches whose name contains this text")

	var force bool
	create := &cobra.Command{
		Use:   "create <name> [revision]",
		Short: "Create a branch at a revision (default HEAD)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			b, err := s.CreateBranch(cmd.Context(), args[0], revisionArg(args), force)
			if err != nil {
				return fail(p, err)
			}
			return p.Success(fmt.Sprintf("Created branch %s at %s", b.Name, b.Head.ShortID()), b)
		},
	}
	create.Flags().BoolVarP(&force, "force", "f", false, "Move the branch if it already exists")

	cmd.AddCommand(list, create)
	return cmd
}

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "List or create lightweight tags",
	}

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			tags, err := s.ListTags(cmd.Context(), filter)
			if err != nil {
				return fail(p, err)
			}
			return p.Tags(tags)
		},
	}
	list.Flags().StringVar(&filter, "filter", "", "Only tags whose name contains this text")

	var force bool
	create := &cobra.Command{
		Use:   "create <name> [revision]",
		Short: "Create a lightweight tag at a revision (default HEAD)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			t, err := s.CreateTag(cmd.Context(), args[0], revisionArg(args), force)
			if err != nil {
				return fail(p, err)
			}
			return p.Success(fmt.Sprintf("Created tag %s at %s", t.Tag, t.Commit.ShortID()), t)
		},
	}
	create.Flags().BoolVarP(&force, "force", "f", false, "Move the tag if it already exists")

	cmd.AddCommand(list, create)
	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <revision>",
		Short: "Check out a branch or detach HEAD at a revision",
		Long: `Check out a revision. A local branch name attaches HEAD to that branch;
anything else (tags, remote branches, hashes) detaches HEAD. A working tree
with uncommitted changes to tracked files is left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd)
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}
			c, err := s.CheckoutRevision(cmd.Context(), args[0])
			if err != nil {
				return fail(p, err)
			}
			return p.Success(fmt.Sprintf("HEAD is now at %s %s", c.ShortID(), c.Title), c)
		},
	}
}

func revisionArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return "HEAD"
}
