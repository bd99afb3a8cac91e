package git

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type DiffType string

const (
	DiffText   DiffType = "text"
	DiffBinary DiffType = "binary"
)

// DiffFile is one side of a changed file. Content is empty for binary files
// and submodules.
type DiffFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	IsBinary bool   `json:"isBinary"`
}

// FileDiff is the change to a single path. Old is nil for additions and New
// is nil for deletions.
type FileDiff struct {
	Old      *DiffFile `json:"old"`
	New      *DiffFile `json:"new"`
	DiffType DiffType  `json:"diffType"`
	Patch    string    `json:"patch"`
}

type DiffStats struct {
	FilesChanged     int `json:"filesChanged"`
	Insertions       int `json:"insertions"`
	Deletions        int `json:"deletions"`
	TotalOldNumLines int `json:"totalOldNumLines"`
}

// Diff is the difference between two trees. It owns all of its text.
type Diff struct {
	Patch      string            `json:"patch"`
	Stats      DiffStats         `json:"stats"`
	OldSources map[string]string `json:"oldSources"`
	Files      []FileDiff        `json:"files"`
}

// Diff compares the tree of base with the tree of head. A nil or empty head
// means HEAD; a nil or empty base means the empty tree. Renames are detected
// using the repository's rename score. A failure on any file fails the whole
// diff.
func (r *Repository) Diff(ctx context.Context, base, head *string) (*Diff, error) {
	headRev := "HEAD"
	if head != nil && *head != "" {
		headRev = *head
	}
	headTree, err := r.resolveTree(headRev)
	if err != nil {
		return nil, err
	}
	var baseTree *object.Tree
	if base != nil && *base != "" {
		if baseTree, err = r.resolveTree(*base); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, baseTree, headTree, &object.DiffTreeOptions{
		DetectRenames: true,
		RenameScore:   r.renameScore,
	})
	if err != nil {
		return nil, wrapf(err, "diffing trees")
	}

	d := &Diff{
		OldSources: map[string]string{},
		Files:      make([]FileDiff, 0, len(changes)),
	}
	var text strings.Builder
	for _, change := range changes {
		fd, stats, err := r.fileDiff(ctx, change)
		if err != nil {
			return nil, err
		}
		text.WriteString(fd.Patch)
		d.Stats.FilesChanged++
		for _, s := range stats {
			d.Stats.Insertions += s.Addition
			d.Stats.Deletions += s.Deletion
		}
		if fd.Old != nil && !fd.Old.IsBinary && !change.From.TreeEntry.Hash.IsZero() &&
			change.From.TreeEntry.Mode != filemode.Submodule {
			d.OldSources[fd.Old.Path] = fd.Old.Content
			d.Stats.TotalOldNumLines += countLines(fd.Old.Content)
		}
		d.Files = append(d.Files, fd)
	}
	d.Patch = text.String()
	return d, nil
}

func (r *Repository) fileDiff(ctx context.Context, change *object.Change) (FileDiff, object.FileStats, error) {
	path := change.To.Name
	if path == "" {
		path = change.From.Name
	}

	patch, err := change.PatchContext(ctx)
	if err != nil {
		return FileDiff{}, nil, wrapf(err, "computing patch for %s", path)
	}
	old, err := r.diffSide(change.From)
	if err != nil {
		return FileDiff{}, nil, err
	}
	cur, err := r.diffSide(change.To)
	if err != nil {
		return FileDiff{}, nil, err
	}

	fd := FileDiff{Old: old, New: cur, DiffType: DiffText, Patch: patch.String()}
	if (old != nil && old.IsBinary) || (cur != nil && cur.IsBinary) {
		fd.DiffType = DiffBinary
	}
	return fd, patch.Stats(), nil
}

// diffSide loads one side of a change. It returns nil when the side does
// not exist.
func (r *Repository) diffSide(e object.ChangeEntry) (*DiffFile, error) {
	if e.Name == "" {
		return nil, nil
	}
	f := &DiffFile{Path: e.Name}
	if e.TreeEntry.Hash.IsZero() || e.TreeEntry.Mode == filemode.Submodule {
		return f, nil
	}

	blob, err := r.repo.BlobObject(e.TreeEntry.Hash)
	if err != nil {
		return nil, wrapf(err, "reading blob for %s", e.Name)
	}
	file := object.NewFile(e.Name, e.TreeEntry.Mode, blob)
	binary, err := file.IsBinary()
	if err != nil {
		return nil, wrapf(err, "inspecting %s", e.Name)
	}
	if binary {
		f.IsBinary = true
		return f, nil
	}
	if f.Content, err = file.Contents(); err != nil {
		return nil, wrapf(err, "reading %s", e.Name)
	}
	return f, nil
}

// resolveTree resolves rev to a tree, peeling tags and commits.
func (r *Repository) resolveTree(rev string) (*object.Tree, error) {
	h, err := r.Resolve(rev)
	if err != nil {
		return nil, err
	}
	obj, err := r.repo.Object(plumbing.AnyObject, h)
	if err != nil {
		return nil, wrapf(err, "reading object %s", h)
	}
	if t, ok := obj.(*object.Tree); ok {
		return t, nil
	}
	c, err := r.peelToCommit(h)
	if err != nil {
		return nil, err
	}
	t, err := c.Tree()
	if err != nil {
		return nil, wrapf(err, "reading tree of %s", c.Hash)
	}
	return t, nil
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
