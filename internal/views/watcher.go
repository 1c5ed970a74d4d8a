package views

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// ReloadCallback is called with the views changed by a reload.
type ReloadCallback func(changed []Name)

// Watch reloads the catalog from path whenever the file changes, until ctx
// is cancelled. The parent directory is watched so editors that replace the
// file are handled.
func (c *Catalog) Watch(ctx context.Context, path string, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("views: watcher: %w", err)
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("views: watch %s: %w", filepath.Dir(path), err)
	}

	logger.Info("views watcher: started", slog.String("path", path))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(reloadDebounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("views watcher: stopped")
			return nil

		case <-reloadCh:
			changed, err := c.Load(path)
			if err != nil {
				logger.Warn("views watcher: reload failed", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			logger.Info("views watcher: reloaded", slog.Int("changed", len(changed)))
			if cb != nil && len(changed) > 0 {
				cb(changed)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("views watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
