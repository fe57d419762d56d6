// Package watcher monitors the private vault for file changes and keeps
// the private index current through debounced incremental syncs.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/privindex"
)

const debounceDelay = 2 * time.Second

// Watcher tails filesystem events under the private vault root and
// flushes changed paths to the index in batches.
type Watcher struct {
	Index *privindex.Index
	Root  string
	Skip  map[string]bool
}

// Run blocks until ctx is done or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dirs := w.walkDirs()
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			fmt.Fprintf(os.Stderr, "qm: warning: cannot watch %s: %v\n", d, err)
		}
	}
	fmt.Fprintf(os.Stderr, "qm: watching %d directories under %s\n", len(dirs), w.Root)

	var (
		mu      sync.Mutex
		pending = make(map[string]bool)
		timer   *time.Timer
	)
	flush := func() {
		mu.Lock()
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		pending = make(map[string]bool)
		mu.Unlock()
		if len(paths) == 0 {
			return
		}

		fmt.Fprintf(os.Stderr, "qm: syncing %d changed note(s)\n", len(paths))
		if err := w.Index.SyncPaths(ctx, paths); err != nil {
			fmt.Fprintf(os.Stderr, "qm: warning: sync: %v\n", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".md") {
				// New directories join the watch set.
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.Skip[filepath.Base(event.Name)] {
						if err := fw.Add(event.Name); err != nil {
							fmt.Fprintf(os.Stderr, "qm: warning: cannot watch %s: %v\n", event.Name, err)
						}
					}
				}
				continue
			}

			jp, ok := w.JoinedPathFor(event.Name)
			if !ok {
				continue
			}
			mu.Lock()
			pending[jp] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, flush)
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "qm: warning: watch: %v\n", err)
		}
	}
}

// JoinedPathFor converts an absolute file path under the vault root into
// its private joined path. Paths outside the root or inside skipped
// directories report false.
func (w *Watcher) JoinedPathFor(absPath string) (string, bool) {
	rel, err := filepath.Rel(w.Root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if w.Skip[seg] {
			return "", false
		}
	}
	return pathmap.JoinedPath(pathmap.VaultAgentPrivate, rel), true
}

func (w *Watcher) walkDirs() []string {
	var dirs []string
	filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.Skip[d.Name()] {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs
}
