package canvas

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher observes the workspace directory and reports files that appear
// without a metadata record. It only ever reports; adoption stays a human
// decision.
type Watcher struct {
	store   *Store
	log     *zap.Logger
	watcher *fsnotify.Watcher
}

func NewWatcher(store *Store, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{store: store, log: log, watcher: fsw}
	if err := w.watchTree(store.WorkspaceRoot()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Run blocks until ctx is done, reporting untracked file creations.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			w.handleCreate(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleCreate(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("cannot watch new directory", zap.String("path", path), zap.Error(err))
		}
		return
	}
	rel, err := filepath.Rel(w.store.WorkspaceRoot(), path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if reservedWorkspaceNames[rel] {
		return
	}
	if w.store.TracksPath(rel) {
		return
	}
	w.log.Info("untracked file appeared in workspace", zap.String("path", rel))
	w.store.NoteOrphan(rel)
}
