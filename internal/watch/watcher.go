// Package watch invalidates cached store fragments when the store changes
// on disk.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/repeateval/repeat/internal/pkg/logger"
)

// DefaultDebounce is the quiet period after the last change before the
// cache is purged.
const DefaultDebounce = 500 * time.Millisecond

// Purger drops cached fragments.
type Purger interface {
	Purge(ctx context.Context) error
}

// Metrics records invalidations.
type Metrics interface {
	RecordInvalidation()
}

// DirLister lists the directories to watch.
type DirLister interface {
	Dirs() ([]string, error)
}

// Config configures an Invalidator.
type Config struct {
	Root     string
	Dirs     DirLister
	Cache    Purger
	Debounce time.Duration // Default: 500ms
	Metrics  Metrics
	Log      *logger.Logger

	// OnChange is called after every purge with the changed paths.
	OnChange func(ctx context.Context, paths []string)
}

// Invalidator purges a fragment cache whenever a watched store file
// changes. Bursts of changes are batched into one purge.
type Invalidator struct {
	root     string
	dirs     DirLister
	cache    Purger
	ignore   *IgnoreFilter
	debounce time.Duration
	metrics  Metrics
	onChange func(ctx context.Context, paths []string)
	log      *logger.Logger

	pendingMu sync.Mutex
	pending   map[string]struct{}
	timer     *time.Timer

	// Stats
	purges    int
	lastPurge time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewInvalidator creates an invalidator for the store at cfg.Root.
func NewInvalidator(cfg Config) (*Invalidator, error) {
	if cfg.Cache == nil {
		return nil, errors.New("watch: no cache to invalidate")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	ignore, err := NewIgnoreFilter(root)
	if err != nil {
		return nil, err
	}

	return &Invalidator{
		root:     root,
		dirs:     cfg.Dirs,
		cache:    cfg.Cache,
		ignore:   ignore,
		debounce: cfg.Debounce,
		metrics:  cfg.Metrics,
		onChange: cfg.OnChange,
		log:      &logger.Logger{Logger: cfg.Log.With("component", "watch")},
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Run watches until ctx is done or Stop is called.
func (w *Invalidator) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	dirs := []string{w.root}
	if w.dirs != nil {
		more, err := w.dirs.Dirs()
		if err != nil {
			return err
		}
		dirs = append(dirs, more...)
	}
	for _, dir := range dirs {
		if dir, err = filepath.Abs(dir); err != nil {
			return err
		}
		if w.ignore.ShouldIgnore(dir, true) {
			continue
		}
		if err := fsWatcher.Add(dir); err != nil {
			return err
		}
	}
	w.log.Info("Watching store for changes", "root", w.root, "dirs", len(dirs))

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event, fsWatcher)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)
		}
	}
}

func (w *Invalidator) handleEvent(ctx context.Context, event fsnotify.Event, fsWatcher *fsnotify.Watcher) {
	path := event.Name
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if w.ignore.ShouldIgnore(path, isDir) {
		return
	}

	// New directories are watched with everything below them.
	if isDir {
		_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if w.ignore.ShouldIgnore(p, true) {
				return filepath.SkipDir
			}
			if err := fsWatcher.Add(p); err != nil {
				w.log.Warn("Failed to watch directory", "path", p, "error", err)
			}
			return nil
		})
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

// flush purges the cache for the pending batch of changes.
func (w *Invalidator) flush(ctx context.Context) {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(paths)

	if err := w.cache.Purge(ctx); err != nil {
		w.log.Error("Failed to purge fragment cache", "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.RecordInvalidation()
	}

	w.pendingMu.Lock()
	w.purges++
	w.lastPurge = time.Now()
	w.pendingMu.Unlock()

	w.log.Info("Store changed, fragment cache purged", "changes", len(paths))
	if w.onChange != nil {
		w.onChange(ctx, paths)
	}
}

func (w *Invalidator) stopTimer() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Stop ends Run.
func (w *Invalidator) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Stats returns the number of purges and the time of the last one.
func (w *Invalidator) Stats() (int, time.Time) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return w.purges, w.lastPurge
}
