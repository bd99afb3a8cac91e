package git

import (
	"bytes"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxRenameMatrix caps the deleted*added pairs compared by content. Above it
// only exact renames are paired.
const maxRenameMatrix = 100 * 100

// similarity scores how much of a and b is shared line by line, as a
// percentage of the longer input. Binary content only matches exactly.
func similarity(a, b []byte) uint {
	if bytes.Equal(a, b) {
		return 100
	}
	if len(a) == 0 || len(b) == 0 || isBinary(a) || isBinary(b) {
		return 0
	}
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(a), string(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	common := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			common += len(d.Text)
		}
	}
	return uint(common * 100 / max(len(a), len(b)))
}

// isBinary mirrors git's heuristic: a NUL byte in the first 8000 bytes.
func isBinary(b []byte) bool {
	if len(b) > 8000 {
		b = b[:8000]
	}
	return bytes.IndexByte(b, 0) >= 0
}

// renameCandidate is one side of a possible rename.
type renameCandidate struct {
	path string
	hash ObjectID
	load func() ([]byte, error)
}

// pairRenames matches deleted paths with added paths, identical content
// first and then by similarity of at least minScore. It returns old path to
// new path. Each path takes part in at most one pair.
func pairRenames(deleted, added []renameCandidate, minScore uint) (map[string]string, error) {
	pairs := map[string]string{}
	if len(deleted) == 0 || len(added) == 0 {
		return pairs, nil
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i].path < deleted[j].path })
	sort.Slice(added, func(i, j int) bool { return added[i].path < added[j].path })

	used := make([]bool, len(added))
	byHash := map[ObjectID][]int{}
	for i, a := range added {
		byHash[a.hash] = append(byHash[a.hash], i)
	}

	var rest []renameCandidate
	for _, d := range deleted {
		matched := false
		for _, i := range byHash[d.hash] {
			if !used[i] {
				used[i] = true
				pairs[d.path] = added[i].path
				matched = true
				break
			}
		}
		if !matched {
			rest = append(rest, d)
		}
	}

	free := 0
	for _, u := range used {
		if !u {
			free++
		}
	}
	if len(rest) == 0 || free == 0 || len(rest)*free > maxRenameMatrix {
		return pairs, nil
	}

	contents := make([][]byte, len(added))
	for _, d := range rest {
		old, err := d.load()
		if err != nil {
			return nil, err
		}
		best, bestScore := -1, uint(0)
		for i, a := range added {
			if used[i] {
				continue
			}
			if contents[i] == nil {
				if contents[i], err = a.load(); err != nil {
					return nil, err
				}
			}
			if score := similarity(old, contents[i]); score > bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 && bestScore >= minScore {
			used[best] = true
			pairs[d.path] = added[best].path
		}
	}
	return pairs, nil
}
