package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/session"
)

// --- Shared types ---

// CommitSummary is a flattened commit for tool output.
type CommitSummary struct {
	ID         string   `json:"id"                   jsonschema:"full commit hash"`
	Short      string   `json:"short"                jsonschema:"abbreviated commit hash"`
	Summary    string   `json:"summary"              jsonschema:"first paragraph of the message"`
	Author     string   `json:"author"               jsonschema:"author name and email"`
	Time       string   `json:"time"                 jsonschema:"committer time, RFC 3339"`
	References []string `json:"references,omitempty" jsonschema:"references pointing at the commit"`
}

func summarize(c git.Commit, refs []git.ReferenceMetadata) CommitSummary {
	out := CommitSummary{
		ID:      c.Hash,
		Short:   c.ShortID(),
		Summary: c.Title,
		Author:  fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		Time:    c.Time.Format(time.RFC3339),
	}
	for _, r := range refs {
		out.References = append(out.References, r.Name)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- Status tool ---

type StatusInput struct{}

// TreeChanges lists changed paths on one side of the status comparison.
type TreeChanges struct {
	New      []string `json:"new"      jsonschema:"added paths"`
	Modified []string `json:"modified" jsonschema:"modified paths"`
	Deleted  []string `json:"deleted"  jsonschema:"deleted paths"`
	Renamed  []string `json:"renamed"  jsonschema:"old paths of renamed files"`
}

type StatusOutput struct {
	Branch    string         `json:"branch,omitempty" jsonschema:"checked out branch, empty when detached"`
	Head      *CommitSummary `json:"head,omitempty"   jsonschema:"HEAD commit, absent on an unborn branch"`
	Detached  bool           `json:"detached"         jsonschema:"whether HEAD is detached"`
	Dirty     bool           `json:"dirty"            jsonschema:"whether anything differs from HEAD"`
	Index     TreeChanges    `json:"index"            jsonschema:"changes staged in the index"`
	Worktree  TreeChanges    `json:"worktree"         jsonschema:"unstaged changes in the worktree"`
	Conflicts []string       `json:"conflicts"        jsonschema:"paths with merge conflicts"`
}

func treeChanges(t git.TreeStatus) TreeChanges {
	return TreeChanges{New: t.NewFiles, Modified: t.ModifiedFiles, Deleted: t.DeletedFiles, Renamed: t.RenamedFiles}
}

func handleStatus(s *session.Session) mcp.ToolHandlerFor[StatusInput, StatusOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
		st, err := s.Status(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("reading status: %w", err)
		}
		out := StatusOutput{
			Detached:  st.IsDetachedHead,
			Dirty:     st.IsDirty,
			Index:     treeChanges(st.Index),
			Worktree:  treeChanges(st.Worktree),
			Conflicts: st.Conflicts,
		}
		if st.CurrentBranch != nil {
			out.Branch = *st.CurrentBranch
		}
		if st.Head != nil {
			head := summarize(st.Head.Commit, st.Head.References)
			out.Head = &head
		}
		return nil, out, nil
	}
}

// --- Log tool ---

type LogInput struct {
	Base   string `json:"base,omitempty"   jsonschema:"exclude commits reachable from this revision"`
	Head   string `json:"head,omitempty"   jsonschema:"start walking from this revision (default HEAD)"`
	Filter string `json:"filter,omitempty" jsonschema:"case-insensitive substring of the hash or summary"`
	Limit  int    `json:"limit,omitempty"  jsonschema:"maximum number of commits (default 50)"`
}

type LogOutput struct {
	Count     int             `json:"count"     jsonschema:"number of commits returned"`
	Truncated bool            `json:"truncated" jsonschema:"whether more commits matched than the limit"`
	Commits   []CommitSummary `json:"commits"   jsonschema:"commits, newest first"`
}

const defaultLogLimit = 50

func handleLog(s *session.Session) mcp.ToolHandlerFor[LogInput, LogOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LogInput) (*mcp.CallToolResult, LogOutput, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultLogLimit
		}
		commits, err := s.ListCommits(ctx, session.ListCommitsOptions{
			Base:   optional(input.Base),
			Head:   optional(input.Head),
			Filter: input.Filter,
		})
		if err != nil {
			return nil, LogOutput{}, fmt.Errorf("listing commits: %w", err)
		}
		out := LogOutput{Commits: []CommitSummary{}}
		if len(commits) > limit {
			commits = commits[:limit]
			out.Truncated = true
		}
		for _, c := range commits {
			out.Commits = append(out.Commits, summarize(c.Commit, c.References))
		}
		out.Count = len(out.Commits)
		return nil, out, nil
	}
}

// --- Diff tool ---

type DiffInput struct {
	Base     string `json:"base,omitempty"      jsonschema:"old side revision (default: empty tree)"`
	Head     string `json:"head,omitempty"      jsonschema:"new side revision (default HEAD)"`
	StatOnly bool   `json:"stat_only,omitempty" jsonschema:"omit the patch text"`
}

type FileChange struct {
	OldPath string `json:"old_path,omitempty" jsonschema:"path before the change, empty for additions"`
	NewPath string `json:"new_path,omitempty" jsonschema:"path after the change, empty for deletions"`
	Binary  bool   `json:"binary"             jsonschema:"whether either side is binary"`
}

type DiffOutput struct {
	FilesChanged int          `json:"files_changed" jsonschema:"number of changed files"`
	Insertions   int          `json:"insertions"    jsonschema:"added lines"`
	Deletions    int          `json:"deletions"     jsonschema:"removed lines"`
	Files        []FileChange `json:"files"         jsonschema:"changed files"`
	Patch        string       `json:"patch,omitempty" jsonschema:"unified diff"`
}

func handleDiff(s *session.Session) mcp.ToolHandlerFor[DiffInput, DiffOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DiffInput) (*mcp.CallToolResult, DiffOutput, error) {
		d, err := s.GetDiff(ctx, optional(input.Base), optional(input.Head))
		if err != nil {
			return nil, DiffOutput{}, fmt.Errorf("computing diff: %w", err)
		}
		out := DiffOutput{
			FilesChanged: d.Stats.FilesChanged,
			Insertions:   d.Stats.Insertions,
			Deletions:    d.Stats.Deletions,
			Files:        make([]FileChange, 0, len(d.Files)),
		}
		for _, f := range d.Files {
			fc := FileChange{Binary: f.DiffType == git.DiffBinary}
			if f.Old != nil {
				fc.OldPath = f.Old.Path
			}
			if f.New != nil {
				fc.NewPath = f.New.Path
			}
			out.Files = append(out.Files, fc)
		}
		if !input.StatOnly {
			out.Patch = d.Patch
		}
		return nil, out, nil
	}
}

// --- References tool ---

type ReferencesInput struct {
	Filter  string   `json:"filter,omitempty"  jsonschema:"substring of the short reference name"`
	Include []string `json:"include,omitempty" jsonschema:"only these kinds: branch, remotebranch, tag, note"`
	Exclude []string `json:"exclude,omitempty" jsonschema:"all kinds except these"`
}

type ReferenceSummary struct {
	Name   string        `json:"name"   jsonschema:"short reference name"`
	Kind   string        `json:"kind"   jsonschema:"branch, remotebranch, tag or note"`
	Commit CommitSummary `json:"commit" jsonschema:"commit the reference points at"`
}

type ReferencesOutput struct {
	Count      int                `json:"count"      jsonschema:"number of references"`
	References []ReferenceSummary `json:"references" jsonschema:"references ordered by full name"`
}

func parseKinds(names []string) ([]git.ReferenceKind, error) {
	kinds := make([]git.ReferenceKind, 0, len(names))
	for _, n := range names {
		k, err := git.ParseReferenceKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func handleReferences(s *session.Session) mcp.ToolHandlerFor[ReferencesInput, ReferencesOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReferencesInput) (*mcp.CallToolResult, ReferencesOutput, error) {
		include, err := parseKinds(input.Include)
		if err != nil {
			return nil, ReferencesOutput{}, err
		}
		exclude, err := parseKinds(input.Exclude)
		if err != nil {
			return nil, ReferencesOutput{}, err
		}
		kinds, err := git.NewKindFilter(include, exclude)
		if err != nil {
			return nil, ReferencesOutput{}, err
		}
		refs, err := s.ListReferences(ctx, input.Filter, kinds)
		if err != nil {
			return nil, ReferencesOutput{}, fmt.Errorf("listing references: %w", err)
		}
		out := ReferencesOutput{References: make([]ReferenceSummary, 0, len(refs))}
		for _, r := range refs {
			out.References = append(out.References, ReferenceSummary{
				Name:   r.Name,
				Kind:   string(r.Kind),
				Commit: summarize(r.Commit, nil),
			})
		}
		out.Count = len(out.References)
		return nil, out, nil
	}
}

// --- Show tool ---

type ShowInput struct {
	Revision string `json:"revision" jsonschema:"revision to show"`
}

type ShowOutput struct {
	Commit    CommitSummary `json:"commit"    jsonschema:"the commit"`
	Body      string        `json:"body"      jsonschema:"message after the summary"`
	Committer string        `json:"committer" jsonschema:"committer name and email"`
}

func handleShow(s *session.Session) mcp.ToolHandlerFor[ShowInput, ShowOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ShowInput) (*mcp.CallToolResult, ShowOutput, error) {
		if input.Revision == "" {
			return nil, ShowOutput{}, errors.New("revision is required")
		}
		c, err := s.GetRevision(ctx, input.Revision)
		if err != nil {
			return nil, ShowOutput{}, err
		}
		return nil, ShowOutput{
			Commit:    summarize(c.Commit, c.References),
			Body:      c.Body,
			Committer: fmt.Sprintf("%s <%s>", c.Committer.Name, c.Committer.Email),
		}, nil
	}
}
