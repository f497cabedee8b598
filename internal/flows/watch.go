package flows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-imports flow files in a directory when they are written or
// created.
type Watcher struct {
	store  Store
	dir    string
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	// OnImport, when set, is called after every import attempt.
	OnImport func(path string, sum Summary, err error)
}

// NewWatcher starts watching dir. Events that happen after NewWatcher
// returns are picked up by Run.
func NewWatcher(store Store, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{store: store, dir: dir, fsw: fsw, logger: slog.Default()}, nil
}

// Run handles events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.logger.Info("watching call flows", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !IsDefinitionFile(event.Name) {
				continue
			}
			sum, err := ImportFile(w.store, event.Name)
			if err != nil {
				w.logger.Warn("call flow import failed", "file", event.Name, "error", err)
			} else {
				w.logger.Info("call flows imported", "file", event.Name, "created", len(sum.Created), "updated", len(sum.Updated))
			}
			if w.OnImport != nil {
				w.OnImport(event.Name, sum, err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}
