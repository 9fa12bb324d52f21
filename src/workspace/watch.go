package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// ErrWatchUnsupported is returned when the workspace is not backed by the OS filesystem.
var ErrWatchUnsupported = errors.New("watching requires an OS-backed workspace")

// Watch calls onChange with the workspace-relative path of every create, write, remove
// or rename under the root until ctx is done. Ignored directories are not watched.
func (w *Workspace) Watch(ctx context.Context, onChange func(rel string)) error {
	if w == nil || w.root == "" {
		return ErrNoWorkspace
	}
	if _, ok := w.fs.(*afero.OsFs); !ok {
		return ErrWatchUnsupported
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name, filepath.Base(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addTree(watcher, ev.Name)
				}
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				continue
			}
			onChange(filepath.ToSlash(rel))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Workspace) addTree(watcher *fsnotify.Watcher, dir string) error {
	return afero.Walk(w.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path, info.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
