package bundler

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// debounce coalesces a burst of filesystem events (e.g. an editor's
// write-then-rename save) into a single rebuild.
const debounce = 200 * time.Millisecond

// DirWatcher abstracts filesystem event monitoring. Satisfied by
// *fsnotify.Watcher; tests inject a fake.
type DirWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWatcher struct{ w *fsnotify.Watcher }

func (fw *fsnotifyWatcher) Add(name string) error         { return fw.w.Add(name) }
func (fw *fsnotifyWatcher) Close() error                  { return fw.w.Close() }
func (fw *fsnotifyWatcher) Events() <-chan fsnotify.Event { return fw.w.Events }
func (fw *fsnotifyWatcher) Errors() <-chan error          { return fw.w.Errors }

// Watch rebuilds the bundle under root whenever a manifest file changes,
// invoking onRebuild with the new Bundle (or the error a failed rebuild
// produced). It blocks until ctx is cancelled (spec.md §4.4: bundler
// supports rebuild-on-change for local development).
func (b *Bundler) Watch(ctx context.Context, root string, onRebuild func(sandbox.Bundle, error)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	watcher := &fsnotifyWatcher{w: fw}
	defer watcher.Close()

	if err := addWatchesRecursive(watcher, root); err != nil {
		return err
	}

	var timer *time.Timer
	rebuild := func() {
		bundle, err := b.Build(root)
		if err != nil {
			b.logger.Error("bundler: rebuild failed", slog.String("error", err.Error()))
		}
		onRebuild(bundle, err)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, rebuild)
			} else {
				timer.Reset(debounce)
			}

		case werr, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			b.logger.Warn("bundler: watch error", slog.String("error", werr.Error()))
		}
	}
}

func addWatchesRecursive(watcher DirWatcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
