// Package watch reports changes under the Claude data directory so the
// monitor can refresh soon after new usage is written.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches a directory and its immediate subdirectories. Bursts of
// filesystem events are coalesced into a single pending signal.
type Watcher struct {
	fsw     *fsnotify.Watcher
	root    string
	logger  zerolog.Logger
	changed chan struct{}
}

func New(root string, logger zerolog.Logger) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}
	w := &Watcher{
		fsw:     fsw,
		root:    root,
		logger:  logger.With().Str("component", "watch").Logger(),
		changed: make(chan struct{}, 1),
	}
	if err := w.addTree(); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree() error {
	if err := w.fsw.Add(w.root); err != nil {
		return fmt.Errorf("watch: adding %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("watch: listing %s: %w", w.root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(w.root, e.Name())
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug().Err(err).Str("path", path).Msg("skipping unwatchable directory")
		}
	}
	return nil
}

// Changed delivers at most one pending signal at a time.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Run forwards filesystem events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.root {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.logger.Debug().Err(err).Str("path", ev.Name).Msg("watching new project directory failed")
			}
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
