package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	debugmcp "github.com/jonasehrlich/debug-tree/internal/mcp"
	"github.com/jonasehrlich/debug-tree/internal/server"
	"github.com/jonasehrlich/debug-tree/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repository over HTTP",
		Long: `Serve the repository API under /api/v1/git and push status updates to
subscribers of /api/v1/git/repository/status/stream whenever the working
tree, the index, HEAD or a reference changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd)
			if listen != "" {
				a.cfg.Listen = listen
			}
			s, err := a.open()
			if err != nil {
				return fail(p, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			status := watcher.NewBroadcaster()
			w, err := watcher.New(s.Path(), s, status,
				watcher.WithDebounce(a.cfg.Debounce),
				watcher.WithLogger(a.logger))
			if err != nil {
				a.logger.Warn("file watching disabled", "error", err)
			} else {
				go func() {
					if err := w.Run(ctx); err != nil {
						a.logger.Error("watcher stopped", "error", err)
					}
				}()
			}

			srv := server.NewServer(s, status, a.logger).HTTPServer(ctx, a.cfg.Listen)
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server listening", "addr", a.cfg.Listen, "repo", s.Path())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fail(p, err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fail(p, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, 127.0.0.1:8080)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as MCP server (stdio transport)",
		Long: `Run debugtree as a Model Context Protocol server over stdio.

Configure in your agent's MCP settings:
  {
    "mcpServers": {
      "debugtree": {
        "command": "debugtree",
        "args": ["mcp", "--repo", "/path/to/repo"]
      }
    }
  }

Available tools: git_status, git_log, git_diff, git_references, git_show`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open()
			if err != nil {
				return fail(newPrinter(cmd), err)
			}
			return debugmcp.NewServer(buildVersion(), s).Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
