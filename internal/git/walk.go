package git

import (
	"errors"
	"io"
	"strings"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// CommitWalk yields the commits of base..head newest first. Commits are read
// from the store as the walk advances. The ancestors of base travel through
// the same queue marked hidden, so only the part of history that overlaps
// the range is read.
type CommitWalk struct {
	repo    *Repository
	queue   *binaryheap.Heap
	nodes   map[ObjectID]*walkNode
	shallow map[ObjectID]struct{}
	seq     uint64
	// interesting counts queued items that are not hidden. The walk ends
	// when it drops to zero.
	interesting int
	index       ReferenceIndex
}

var _ object.CommitIter = (*CommitWalk)(nil)

type walkNode struct {
	hidden bool
}

type walkItem struct {
	commit *object.Commit
	seq    uint64
	hidden bool
}

// byCommitTime orders the queue by committer time, newest first. At equal
// times hidden items come first, then discovery order, so a child always
// precedes the parent it led to.
func byCommitTime(a, b interface{}) int {
	x, y := a.(walkItem), b.(walkItem)
	switch {
	case x.commit.Committer.When.After(y.commit.Committer.When):
		return -1
	case x.commit.Committer.When.Before(y.commit.Committer.When):
		return 1
	case x.hidden != y.hidden:
		if x.hidden {
			return -1
		}
		return 1
	case x.seq < y.seq:
		return -1
	case x.seq > y.seq:
		return 1
	}
	return 0
}

// Walk starts a walk over the commits reachable from head but not from base.
// A nil or empty head means HEAD, a nil or empty base means no lower bound.
// Both revisions are resolved before Walk returns.
func (r *Repository) Walk(base, head *string) (*CommitWalk, error) {
	headRev := "HEAD"
	if head != nil && *head != "" {
		headRev = *head
	}
	tip, err := r.resolveCommit(headRev)
	if err != nil {
		return nil, err
	}
	var bound *object.Commit
	if base != nil && *base != "" {
		if bound, err = r.resolveCommit(*base); err != nil {
			return nil, err
		}
	}

	shallow := map[ObjectID]struct{}{}
	hashes, err := r.repo.Storer.Shallow()
	if err != nil {
		return nil, wrapf(err, "reading shallow boundary")
	}
	for _, h := range hashes {
		shallow[h] = struct{}{}
	}

	w := &CommitWalk{
		repo:    r,
		queue:   binaryheap.NewWith(byCommitTime),
		nodes:   map[ObjectID]*walkNode{},
		shallow: shallow,
	}
	w.push(tip, false)
	if bound != nil {
		w.push(bound, true)
	}
	return w, nil
}

// push queues c. A commit already queued as interesting that is reached
// again as hidden is queued once more with the hidden mark, and its
// interesting entry is skipped when popped.
func (w *CommitWalk) push(c *object.Commit, hidden bool) {
	n, ok := w.nodes[c.Hash]
	switch {
	case !ok:
		n = &walkNode{hidden: hidden}
		w.nodes[c.Hash] = n
	case hidden && !n.hidden:
		n.hidden = true
	default:
		return
	}
	if !hidden {
		w.interesting++
	}
	w.queue.Push(walkItem{commit: c, seq: w.seq, hidden: hidden})
	w.seq++
}

// pushParents queues the parents of c that the walk has not reached with
// the same or a stronger mark.
func (w *CommitWalk) pushParents(c *object.Commit, hidden bool) error {
	if _, ok := w.shallow[c.Hash]; ok {
		return nil
	}
	for _, ph := range c.ParentHashes {
		if n, ok := w.nodes[ph]; ok && (n.hidden || !hidden) {
			continue
		}
		p, err := w.repo.repo.CommitObject(ph)
		if err != nil {
			return wrapf(err, "reading parent %s of %s", ph, c.Hash)
		}
		w.push(p, hidden)
	}
	return nil
}

// Next returns the next commit, or io.EOF when the walk is exhausted.
func (w *CommitWalk) Next() (*object.Commit, error) {
	for w.interesting > 0 {
		v, ok := w.queue.Pop()
		if !ok {
			break
		}
		item := v.(walkItem)
		if item.hidden {
			if err := w.pushParents(item.commit, true); err != nil {
				return nil, err
			}
			continue
		}
		w.interesting--
		if w.nodes[item.commit.Hash].hidden {
			continue
		}
		if err := w.pushParents(item.commit, false); err != nil {
			return nil, err
		}
		return item.commit, nil
	}
	return nil, io.EOF
}

// NextCommit returns the next commit decorated with its references. The
// reference index is built on the first call and reused for the whole walk.
func (w *CommitWalk) NextCommit() (CommitWithReferences, error) {
	c, err := w.Next()
	if err != nil {
		return CommitWithReferences{}, err
	}
	if w.index == nil {
		if w.index, err = w.repo.BuildReferenceIndex(); err != nil {
			return CommitWithReferences{}, err
		}
	}
	return decorate(newCommit(c), w.index), nil
}

// ForEach calls cb for every remaining commit. Returning storer.ErrStop from
// cb ends the walk without an error.
func (w *CommitWalk) ForEach(cb func(*object.Commit) error) error {
	defer w.Close()
	for {
		c, err := w.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(c); err != nil {
			if errors.Is(err, storer.ErrStop) {
				return nil
			}
			return err
		}
	}
}

func (w *CommitWalk) Close() {
	w.queue.Clear()
	w.interesting = 0
}

// ListCommits collects base..head, keeping commits whose id or summary
// contains filter, compared case-insensitively. Nothing is returned when any
// step fails.
func (r *Repository) ListCommits(base, head *string, filter string) ([]CommitWithReferences, error) {
	walk, err := r.Walk(base, head)
	if err != nil {
		return nil, err
	}
	defer walk.Close()

	filter = strings.ToLower(filter)
	commits := []CommitWithReferences{}
	for {
		c, err := walk.NextCommit()
		if errors.Is(err, io.EOF) {
			return commits, nil
		}
		if err != nil {
			return nil, err
		}
		if matchesCommitFilter(c, filter) {
			commits = append(commits, c)
		}
	}
}

func matchesCommitFilter(c CommitProperties, lowered string) bool {
	if lowered == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.ID()), lowered) ||
		strings.Contains(strings.ToLower(c.Summary()), lowered)
}
