// Package main provides the entry point for the debugtree CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jonasehrlich/debug-tree/internal/config"
	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/logging"
	"github.com/jonasehrlich/debug-tree/internal/output"
	"github.com/jonasehrlich/debug-tree/internal/session"
)

// Build info set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" && date == "unknown" {
		return version
	}
	shortCommit := commit
	if len(commit) > 7 {
		shortCommit = commit[:7]
	}
	return fmt.Sprintf("%s (%s, %s)", version, shortCommit, date)
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	err := fang.Execute(context.Background(), cmd, fang.WithVersion(buildVersion()))
	return output.GetExitCode(err)
}

// app carries state resolved once per invocation by the root command.
type app struct {
	configPath string
	repoFlag   string
	logLevel   string

	cfg     *config.Config
	logger  logging.Logger
	session *session.Session
}

// setup resolves configuration. Flags override file and environment.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return output.NewUsageError(err.Error())
	}
	if a.repoFlag != "" {
		cfg.RepoPath = a.repoFlag
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return output.NewUsageError(err.Error())
	}
	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return output.NewUsageError(err.Error())
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// open returns the session for the configured repository, opening it on
// first use.
func (a *app) open() (*session.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	s, err := session.Open(a.cfg.RepoPath, a.logger, git.WithRenameScore(a.cfg.RenameScore))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("opened repository", "path", s.Path())
	a.session = s
	return s, nil
}

// isJSONMode reads the --json persistent flag from the command hierarchy.
func isJSONMode(cmd *cobra.Command) bool {
	flag := cmd.Flags().Lookup("json")
	if flag == nil {
		flag = cmd.Root().PersistentFlags().Lookup("json")
	}
	return flag != nil && flag.Value.String() == "true"
}

func newPrinter(cmd *cobra.Command) *output.Printer {
	return output.NewPrinter(cmd.OutOrStdout(), isJSONMode(cmd), output.IsTTY(cmd.OutOrStdout())).
		WithStderr(cmd.ErrOrStderr())
}

// fail prints err and hands it back for the exit code.
func fail(p *output.Printer, err error) error {
	p.Error(err)
	return err
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "debugtree",
		Short: "Inspect and navigate a git repository while debugging",
		Long: `debugtree answers questions about a git repository: which commits lie
between two revisions, what changed, which references point where and what
the working tree looks like right now. It can also move HEAD and create
branches and tags.

The same operations are served over HTTP (debugtree serve) and as MCP tools
(debugtree mcp). All commands support --json.`,
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				newPrinter(cmd).Error(err)
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if isJSONMode(cmd) {
				err := output.NewUsageError("no command specified. Run 'debugtree --help' for usage")
				return fail(newPrinter(cmd), err)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(&a.repoFlag, "repo", "", "Path inside the repository (default: config or current directory)")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: $DEBUGTREE_CONFIG or the user config dir)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	lipgloss.SetHasDarkBackground(true)

	cmd.AddGroup(&cobra.Group{ID: "query", Title: "Query Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "refs", Title: "Reference Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "serve", Title: "Server Commands:"})

	addGroupedCommand(cmd, newStatusCmd(a), "query")
	addGroupedCommand(cmd, newLogCmd(a), "query")
	addGroupedCommand(cmd, newDiffCmd(a), "query")
	addGroupedCommand(cmd, newShowCmd(a), "query")
	addGroupedCommand(cmd, newRefsCmd(a), "refs")
	addGroupedCommand(cmd, newBranchCmd(a), "refs")
	addGroupedCommand(cmd, newTagCmd(a), "refs")
	addGroupedCommand(cmd, newCheckoutCmd(a), "refs")
	addGroupedCommand(cmd, newServeCmd(a), "serve")
	addGroupedCommand(cmd, newMCPCmd(a), "serve")
	return cmd
}

func addGroupedCommand(parent, child *cobra.Command, groupID string) {
	child.GroupID = groupID
	parent.AddCommand(child)
}
