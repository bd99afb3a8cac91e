// Package mcp exposes read-only repository queries as Model Context Protocol
// tools.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonasehrlich/debug-tree/internal/session"
)

// NewServer creates an MCP server with all repository tools registered.
func NewServer(version string, s *session.Session) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "debugtree",
		Version: version,
	}, nil)
	registerTools(server, s)
	return server
}

func boolPtr(b bool) *bool {
	return &b
}

func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

func registerTools(server *mcp.Server, s *session.Session) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "git_status",
		Description: "Show the current branch, HEAD commit and the staged, unstaged and conflicting paths of the repository.",
		Annotations: readOnlyAnnotations(),
	}, handleStatus(s))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "git_log",
		Description: "List commits reachable from head but not from base, newest first. Each commit carries the branches and tags pointing at it.",
		Annotations: readOnlyAnnotations(),
	}, handleLog(s))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "git_diff",
		Description: "Diff the trees of two revisions. Without base the diff starts from the empty tree; without head it ends at HEAD.",
		Annotations: readOnlyAnnotations(),
	}, handleDiff(s))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "git_references",
		Description: "List branches, remote branches, tags and notes with the commit each one points at.",
		Annotations: readOnlyAnnotations(),
	}, handleReferences(s))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "git_show",
		Description: "Show a single commit by revision: hash, hash prefix, branch, tag or expression such as HEAD~2.",
		Annotations: readOnlyAnnotations(),
	}, handleShow(s))
}
