// Package watcher notices changes to a repository's worktree and metadata and
// publishes a fresh status after each burst of changes.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/logging"
)

const DefaultDebounce = time.Second

// StatusSource computes the current repository status.
type StatusSource interface {
	Status(ctx context.Context) (*git.RepositoryStatus, error)
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher watches a worktree recursively. Inside .git only HEAD, the index
// and refs/ are of interest.
type Watcher struct {
	root     string
	source   StatusSource
	out      *Broadcaster
	fsw      *fsnotify.Watcher
	logger   logging.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// New starts watching root. Changes are reported once Run is called.
func New(root string, source StatusSource, out *Broadcaster, opts ...Option) (*Watcher, error) {
	if root == "" {
		return nil, errors.New("watcher: repository has no worktree")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		source:   source,
		out:      out,
		fsw:      fsw,
		logger:   logging.Nop(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		if err := fsw.Add(gitDir); err != nil {
			w.logger.Warn("watcher add failed", "path", gitDir, "error", err)
		}
		if err := w.addRecursive(filepath.Join(gitDir, "refs")); err != nil {
			w.logger.Warn("watcher add refs failed", "error", err)
		}
	}
	return w, nil
}

// Run publishes an initial status and then one per quiet period until ctx
// is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()
	w.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.isIgnored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(ev.Name)
				}
			}
			w.schedule(ctx)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Refresh computes the status now and publishes it.
func (w *Watcher) Refresh(ctx context.Context) {
	st, err := w.source.Status(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("status refresh failed", "error", err)
		}
		return
	}
	w.out.Publish(st)
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.Refresh(ctx)
		w.mu.Lock()
		if w.timer == t {
			w.timer = nil
		}
		w.mu.Unlock()
	})
	w.timer = t
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && path != dir {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug("watcher add failed", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) isIgnored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	if rel == ".git" {
		return true
	}
	inner, ok := strings.CutPrefix(rel, ".git/")
	if !ok {
		return false
	}
	switch {
	case inner == "HEAD", inner == "index":
		return false
	case strings.HasPrefix(inner, "refs/"):
		return strings.HasSuffix(inner, ".lock")
	}
	return true
}
