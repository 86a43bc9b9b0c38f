package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events a single save produces.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher calls OnChange after the watched file is written, created or
// renamed into place. The parent directory is watched so editors that replace
// the file atomically are still seen.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   *zap.Logger
}

// New creates a watcher for path.
func New(path string, debounce time.Duration, onChange func(ctx context.Context), logger *zap.Logger) *FileWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{path: filepath.Clean(path), debounce: debounce, onChange: onChange, logger: logger}
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *FileWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching data file", zap.String("path", w.path), zap.Duration("debounce", w.debounce))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("data file event", zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			w.logger.Info("data file changed, reloading", zap.String("path", w.path))
			w.onChange(ctx)
		}
	}
}

func (w *FileWatcher) relevant(e fsnotify.Event) bool {
	if filepath.Clean(e.Name) != w.path {
		return false
	}
	return e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
