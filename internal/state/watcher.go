package state

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// watcherDebounceInterval is how often pending events are checked.
	watcherDebounceInterval = 500 * time.Millisecond

	// watcherSettleTime is how long a file must be quiet before its
	// change is reported, batching rapid writes into one notification.
	watcherSettleTime = 300 * time.Millisecond
)

// Watcher reports keys of a FileStore that were changed by another
// process. Writes made through the FileStore itself are filtered out by
// content hash.
type Watcher struct {
	store    *FileStore
	onChange func(key string)
	logger   *slog.Logger
}

// NewWatcher creates a watcher calling onChange for each externally
// modified key. onChange runs on the watcher goroutine.
func NewWatcher(store *FileStore, logger *slog.Logger, onChange func(key string)) *Watcher {
	return &Watcher{
		store:    store,
		onChange: onChange,
		logger:   logger,
	}
}

// Watch blocks until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("watching %s: %w", w.store.Dir(), err)
	}

	w.logger.Info("local store watcher started", slog.String("dir", w.store.Dir()))

	pending := make(map[string]time.Time)

	ticker := time.NewTicker(watcherDebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if strings.HasPrefix(filepath.Base(event.Name), tmpPrefix) {
				continue
			}

			// Atomic replacements by other editors show up as Create
			// (rename onto the path) rather than Write.
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			now := time.Now()
			for path, t := range pending {
				if now.Sub(t) < watcherSettleTime {
					continue
				}

				delete(pending, path)
				w.handleWrite(path)
			}
		}
	}
}

func (w *Watcher) handleWrite(path string) {
	key, ok := w.store.KeyForPath(path)
	if !ok {
		return
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the store directory
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("reading changed file", slog.String("key", key), slog.String("error", err.Error()))
		}

		return
	}

	if w.store.IsOwnWrite(key, data) {
		return
	}

	w.logger.Debug("local key changed externally", slog.String("key", key))
	w.onChange(key)
}
