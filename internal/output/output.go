// Package output renders command results for the debugtree CLI, either as
// styled text for people or as the same JSON documents the HTTP API serves.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonasehrlich/debug-tree/internal/git"
)

// Printer handles formatted output to a writer.
type Printer struct {
	w      io.Writer
	errW   io.Writer
	json   bool
	isTTY  bool
	styles *Styles
}

// Styles holds lipgloss styles for human-readable output.
type Styles struct {
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Bold    lipgloss.Style
	Dim     lipgloss.Style
	Title   lipgloss.Style
	Key     lipgloss.Style
	Hash    lipgloss.Style
	Ref     lipgloss.Style
	Added   lipgloss.Style
	Removed lipgloss.Style
}

// NewPrinter creates a Printer. Colors are only used when isTTY is set.
func NewPrinter(w io.Writer, jsonMode, isTTY bool) *Printer {
	styles := &Styles{
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Bold:    lipgloss.NewStyle().Bold(true),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Hash:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Ref:     lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
		Added:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Removed: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
	if !isTTY {
		plain := lipgloss.NewStyle()
		styles = &Styles{
			Error: plain, Success: plain, Warning: plain, Bold: plain, Dim: plain, Title: plain,
			Key: plain, Hash: plain, Ref: plain, Added: plain, Removed: plain,
		}
	}
	return &Printer{w: w, errW: w, json: jsonMode, isTTY: isTTY, styles: styles}
}

// WithStderr sets a separate writer for human-readable errors.
func (p *Printer) WithStderr(w io.Writer) *Printer {
	p.errW = w
	return p
}

func (p *Printer) IsJSON() bool { return p.json }

// IsTTY checks if a writer is a terminal.
func IsTTY(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// WriteJSON encodes v as indented JSON.
func (p *Printer) WriteJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// Error prints err. JSON mode writes {"error", "kind", "code"} to the main
// writer.
func (p *Printer) Error(err error) {
	code := GetExitCode(err)
	msg := err.Error()
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		msg = exitErr.Message
	}
	if p.json {
		_ = p.WriteJSON(map[string]any{"error": msg, "kind": git.KindOf(err).String(), "code": code})
		return
	}
	fmt.Fprintf(p.errW, "%s: %s\n", p.styles.Error.Render("Error"), msg)
}

// Success prints a one-line confirmation, or data in JSON mode.
func (p *Printer) Success(message string, data any) error {
	if p.json {
		return p.WriteJSON(data)
	}
	fmt.Fprintln(p.w, p.styles.Success.Render(message))
	return nil
}

func (p *Printer) decorations(refs []git.ReferenceMetadata) string {
	if len(refs) == 0 {
		return ""
	}
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	return " " + p.styles.Ref.Render("("+strings.Join(names, ", ")+")")
}

// Commits prints one line per commit, newest first.
func (p *Printer) Commits(commits []git.CommitWithReferences) error {
	if p.json {
		return p.WriteJSON(map[string]any{"commits": commits})
	}
	for _, c := range commits {
		fmt.Fprintf(p.w, "%s%s %s\n", p.styles.Hash.Render(c.ShortID()), p.decorations(c.References), c.Title)
	}
	return nil
}

// Commit prints a single commit with its full message.
func (p *Printer) Commit(c *git.CommitWithReferences) error {
	if p.json {
		return p.WriteJSON(c)
	}
	fmt.Fprintf(p.w, "%s %s%s\n", p.styles.Bold.Render("commit"), p.styles.Hash.Render(c.Hash), p.decorations(c.References))
	p.keyValue("Author", fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email))
	p.keyValue("Date", c.AuthoredAt.Format("Mon Jan 2 15:04:05 2006 -0700"))
	fmt.Fprintf(p.w, "\n    %s\n", c.Title)
	if c.Body != "" {
		fmt.Fprintln(p.w)
		for _, line := range strings.Split(c.Body, "\n") {
			fmt.Fprintf(p.w, "    %s\n", line)
		}
	}
	return nil
}

func (p *Printer) keyValue(key, value string) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Key.Render(key+":"), value)
}

// Status prints the repository status in the layout of git status.
func (p *Printer) Status(st *git.RepositoryStatus) error {
	if p.json {
		return p.WriteJSON(st)
	}
	switch {
	case st.IsDetachedHead && st.Head != nil:
		fmt.Fprintf(p.w, "HEAD detached at %s\n", p.styles.Hash.Render(st.Head.ShortID()))
	case st.CurrentBranch != nil:
		fmt.Fprintf(p.w, "On branch %s\n", p.styles.Ref.Render(*st.CurrentBranch))
	}
	if st.Head == nil {
		fmt.Fprintln(p.w, "No commits yet")
	}
	if !st.IsDirty {
		fmt.Fprintln(p.w, "nothing to commit, working tree clean")
		return nil
	}
	p.treeStatus("Changes to be committed:", st.Index, p.styles.Added)
	p.treeStatus("Changes not staged for commit:", st.Worktree, p.styles.Removed)
	if len(st.Conflicts) > 0 {
		p.section("Unmerged paths:")
		for _, path := range st.Conflicts {
			fmt.Fprintf(p.w, "\t%s\n", p.styles.Error.Render("both modified:   "+path))
		}
	}
	return nil
}

func (p *Printer) treeStatus(title string, t git.TreeStatus, style lipgloss.Style) {
	groups := []struct {
		label string
		paths []string
	}{
		{"new file:", t.NewFiles},
		{"renamed:", t.RenamedFiles},
		{"modified:", t.ModifiedFiles},
		{"deleted:", t.DeletedFiles},
	}
	printed := false
	for _, g := range groups {
		for _, path := range g.paths {
			if !printed {
				p.section(title)
				printed = true
			}
			fmt.Fprintf(p.w, "\t%s\n", style.Render(padRight(g.label, 12)+path))
		}
	}
}

func (p *Printer) section(title string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.styles.Title.Render(title))
}

// References prints a table of references.
func (p *Printer) References(refs []git.ResolvedReference) error {
	if p.json {
		return p.WriteJSON(map[string]any{"references": refs})
	}
	rows := make([][]string, len(refs))
	for i, r := range refs {
		rows[i] = []string{string(r.Kind), r.Name, r.Commit.ShortID(), r.Commit.Title}
	}
	p.Table([]string{"KIND", "NAME", "COMMIT", "SUMMARY"}, rows)
	return nil
}

func (p *Printer) Branches(branches []git.Branch) error {
	if p.json {
		return p.WriteJSON(map[string]any{"branches": branches})
	}
	rows := make([][]string, len(branches))
	for i, b := range branches {
		rows[i] = []string{b.Name, b.Head.ShortID(), b.Head.Title}
	}
	p.Table([]string{"BRANCH", "COMMIT", "SUMMARY"}, rows)
	return nil
}

func (p *Printer) Tags(tags []git.TaggedCommit) error {
	if p.json {
		return p.WriteJSON(map[string]any{"tags": tags})
	}
	rows := make([][]string, len(tags))
	for i, t := range tags {
		rows[i] = []string{t.Tag, t.Commit.ShortID(), t.Commit.Title}
	}
	p.Table([]string{"TAG", "COMMIT", "SUMMARY"}, rows)
	return nil
}

// Diff prints the patch, or only the changed paths and totals when statOnly
// is set.
func (p *Printer) Diff(d *git.Diff, statOnly bool) error {
	if p.json {
		return p.WriteJSON(map[string]any{"diff": d})
	}
	if statOnly {
		for _, f := range d.Files {
			fmt.Fprintf(p.w, " %s\n", fileLabel(f))
		}
		fmt.Fprintf(p.w, " %d files changed, %s, %s\n",
			d.Stats.FilesChanged,
			p.styles.Added.Render(fmt.Sprintf("%d insertions(+)", d.Stats.Insertions)),
			p.styles.Removed.Render(fmt.Sprintf("%d deletions(-)", d.Stats.Deletions)))
		return nil
	}
	for _, line := range strings.SplitAfter(d.Patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(p.w, p.styles.Bold.Render(strings.TrimSuffix(line, "\n")), newline(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(p.w, p.styles.Added.Render(strings.TrimSuffix(line, "\n")), newline(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(p.w, p.styles.Removed.Render(strings.TrimSuffix(line, "\n")), newline(line))
		default:
			fmt.Fprint(p.w, line)
		}
	}
	return nil
}

func newline(line string) string {
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}

func fileLabel(f git.FileDiff) string {
	var label string
	switch {
	case f.Old == nil:
		label = f.New.Path + " (new)"
	case f.New == nil:
		label = f.Old.Path + " (deleted)"
	case f.Old.Path != f.New.Path:
		label = f.Old.Path + " => " + f.New.Path
	default:
		label = f.New.Path
	}
	if f.DiffType == git.DiffBinary {
		label += " (binary)"
	}
	return label
}

// Table renders rows with aligned columns and a bold header.
func (p *Printer) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(p.w, "  ")
		}
		fmt.Fprint(p.w, p.styles.Bold.Render(padRight(h, widths[i])))
	}
	fmt.Fprintln(p.w)
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(padRight(cell, widths[i]))
		}
		fmt.Fprintln(p.w, strings.TrimRight(b.String(), " "))
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
