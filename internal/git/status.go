package git

import (
	"errors"
	"io"
	"os"
	"sort"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TreeStatus lists changed paths of one side of the status comparison. Each
// list is sorted and never nil.
type TreeStatus struct {
	NewFiles      []string `json:"newFiles"`
	ModifiedFiles []string `json:"modifiedFiles"`
	DeletedFiles  []string `json:"deletedFiles"`
	RenamedFiles  []string `json:"renamedFiles"`
}

func newTreeStatus() TreeStatus {
	return TreeStatus{
		NewFiles:      []string{},
		ModifiedFiles: []string{},
		DeletedFiles:  []string{},
		RenamedFiles:  []string{},
	}
}

func (t TreeStatus) empty() bool {
	return len(t.NewFiles) == 0 && len(t.ModifiedFiles) == 0 &&
		len(t.DeletedFiles) == 0 && len(t.RenamedFiles) == 0
}

type RepositoryStatus struct {
	CurrentBranch  *string               `json:"currentBranch"`
	Head           *CommitWithReferences `json:"head"`
	IsDetachedHead bool                  `json:"isDetachedHead"`
	IsDirty        bool                  `json:"isDirty"`
	Index          TreeStatus            `json:"index"`
	Worktree       TreeStatus            `json:"worktree"`
	Conflicts      []string              `json:"conflicts"`
}

// change flags collected per path before classification.
const (
	indexNew = 1 << iota
	indexRenamed
	indexModified
	indexDeleted
	worktreeNew
	worktreeRenamed
	worktreeModified
	worktreeDeleted
)

// Status compares HEAD, the index and the worktree. Every changed path is
// reported once, in the first bucket of: index new, renamed, modified,
// deleted, then worktree new, renamed, modified, deleted. Paths with
// unmerged index entries are only reported as conflicts. Renames are listed
// under their old path.
func (r *Repository) Status() (*RepositoryStatus, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return nil, wrapf(err, "opening worktree")
	}
	raw, err := w.Status()
	if err != nil {
		return nil, wrapf(err, "computing status")
	}
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, wrapf(err, "reading index")
	}

	st := &RepositoryStatus{
		Index:     newTreeStatus(),
		Worktree:  newTreeStatus(),
		Conflicts: []string{},
	}
	if st.CurrentBranch, err = r.CurrentBranchName(); err != nil {
		return nil, err
	}
	if st.IsDetachedHead, err = r.IsDetachedHead(); err != nil {
		return nil, err
	}

	headTree, err := r.statusHead(st)
	if err != nil {
		return nil, err
	}

	staged := map[string]ObjectID{}
	conflicted := map[string]bool{}
	for _, e := range idx.Entries {
		if e.Stage > 0 {
			conflicted[e.Name] = true
			continue
		}
		staged[e.Name] = e.Hash
	}

	flags := map[string]int{}
	for path, fs := range raw {
		if conflicted[path] || fs.Staging == gogit.UpdatedButUnmerged || fs.Worktree == gogit.UpdatedButUnmerged {
			conflicted[path] = true
			continue
		}
		flags[path] = statusFlags(fs)
	}

	if err := r.detectIndexRenames(flags, headTree, staged); err != nil {
		return nil, err
	}
	if err := r.detectWorktreeRenames(flags, w.Filesystem, staged); err != nil {
		return nil, err
	}

	buckets := []struct {
		flag int
		list *[]string
	}{
		{indexNew, &st.Index.NewFiles},
		{indexRenamed, &st.Index.RenamedFiles},
		{indexModified, &st.Index.ModifiedFiles},
		{indexDeleted, &st.Index.DeletedFiles},
		{worktreeNew, &st.Worktree.NewFiles},
		{worktreeRenamed, &st.Worktree.RenamedFiles},
		{worktreeModified, &st.Worktree.ModifiedFiles},
		{worktreeDeleted, &st.Worktree.DeletedFiles},
	}
	for _, path := range sortedKeys(flags) {
		for _, c := range buckets {
			if flags[path]&c.flag != 0 {
				*c.list = append(*c.list, path)
				break
			}
		}
	}
	for path := range conflicted {
		st.Conflicts = append(st.Conflicts, path)
	}
	sort.Strings(st.Conflicts)

	st.IsDirty = !st.Index.empty() || !st.Worktree.empty() || len(st.Conflicts) > 0
	return st, nil
}

// statusHead fills in the decorated HEAD commit and returns its tree. Both
// are nil on an unborn branch.
func (r *Repository) statusHead(st *RepositoryStatus) (*object.Tree, error) {
	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapf(err, "reading HEAD")
	}
	c, err := r.peelToCommit(ref.Hash())
	if err != nil {
		return nil, err
	}
	refs, err := r.BuildReferenceIndex()
	if err != nil {
		return nil, err
	}
	head := decorate(newCommit(c), refs)
	st.Head = &head

	tree, err := c.Tree()
	if err != nil {
		return nil, wrapf(err, "reading tree of %s", c.Hash)
	}
	return tree, nil
}

func statusFlags(fs *gogit.FileStatus) int {
	if fs.Staging == gogit.Untracked && fs.Worktree == gogit.Untracked {
		return worktreeNew
	}
	f := 0
	switch fs.Staging {
	case gogit.Added, gogit.Copied:
		f |= indexNew
	case gogit.Modified:
		f |= indexModified
	case gogit.Deleted:
		f |= indexDeleted
	case gogit.Renamed:
		f |= indexRenamed
	}
	switch fs.Worktree {
	case gogit.Added, gogit.Untracked:
		f |= worktreeNew
	case gogit.Modified:
		f |= worktreeModified
	case gogit.Deleted:
		f |= worktreeDeleted
	case gogit.Renamed:
		f |= worktreeRenamed
	}
	return f
}

// detectIndexRenames pairs paths deleted from the index with paths added to
// it, comparing the HEAD blob with the staged blob.
func (r *Repository) detectIndexRenames(flags map[string]int, headTree *object.Tree, staged map[string]ObjectID) error {
	if headTree == nil {
		return nil
	}
	var deleted, added []renameCandidate
	for path, f := range flags {
		switch {
		case f&indexDeleted != 0:
			entry, err := headTree.FindEntry(path)
			if err != nil {
				continue
			}
			deleted = append(deleted, renameCandidate{path: path, hash: entry.Hash, load: r.blobLoader(entry.Hash)})
		case f&indexNew != 0:
			h, ok := staged[path]
			if !ok {
				continue
			}
			added = append(added, renameCandidate{path: path, hash: h, load: r.blobLoader(h)})
		}
	}

	pairs, err := pairRenames(deleted, added, r.renameScore)
	if err != nil {
		return wrapf(err, "detecting staged renames")
	}
	for from, to := range pairs {
		r.logger.Debug("staged rename", "from", from, "to", to)
		flags[from] = flags[from]&^indexDeleted | indexRenamed
		delete(flags, to)
	}
	return nil
}

// detectWorktreeRenames pairs tracked files missing from the worktree with
// untracked files, comparing the staged blob with the file on disk. Untracked
// files are only read when something was deleted.
func (r *Repository) detectWorktreeRenames(flags map[string]int, fs billy.Filesystem, staged map[string]ObjectID) error {
	var deleted []renameCandidate
	var untracked []string
	for path, f := range flags {
		switch {
		case f&(indexNew|indexRenamed|indexModified|indexDeleted) != 0:
			continue
		case f&worktreeDeleted != 0:
			h, ok := staged[path]
			if !ok {
				continue
			}
			deleted = append(deleted, renameCandidate{path: path, hash: h, load: r.blobLoader(h)})
		case f == worktreeNew:
			untracked = append(untracked, path)
		}
	}
	if len(deleted) == 0 || len(untracked) == 0 {
		return nil
	}

	added := make([]renameCandidate, 0, len(untracked))
	for _, path := range untracked {
		content, err := readWorktreeFile(fs, path)
		if err != nil {
			return wrapf(err, "reading %s", path)
		}
		added = append(added, renameCandidate{
			path: path,
			hash: plumbing.ComputeHash(plumbing.BlobObject, content),
			load: worktreeLoader(fs, path),
		})
	}

	pairs, err := pairRenames(deleted, added, r.renameScore)
	if err != nil {
		return wrapf(err, "detecting worktree renames")
	}
	for from, to := range pairs {
		r.logger.Debug("worktree rename", "from", from, "to", to)
		flags[from] = flags[from]&^worktreeDeleted | worktreeRenamed
		delete(flags, to)
	}
	return nil
}

func worktreeLoader(fs billy.Filesystem, path string) func() ([]byte, error) {
	return func() ([]byte, error) { return readWorktreeFile(fs, path) }
}

func (r *Repository) blobLoader(h ObjectID) func() ([]byte, error) {
	return func() ([]byte, error) {
		blob, err := r.repo.BlobObject(h)
		if err != nil {
			return nil, err
		}
		rd, err := blob.Reader()
		if err != nil {
			return nil, err
		}
		defer rd.Close()
		return io.ReadAll(rd)
	}
}

// readWorktreeFile returns what git would hash for path: the link target
// for symlinks, the file content otherwise.
func readWorktreeFile(fs billy.Filesystem, path string) ([]byte, error) {
	info, err := fs.Lstat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := fs.Readlink(path)
		if err != nil {
			return nil, err
		}
		return []byte(target), nil
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
