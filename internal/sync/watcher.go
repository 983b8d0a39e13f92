package sync

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses bursts of file events into one reconciliation pass.
const debounce = 300 * time.Millisecond

// ReportCallback is called after each watcher-driven reconciliation.
type ReportCallback func(*Report)

// Watch starts an fsnotify watcher on the tree root and schedules a
// debounced engine run after every relevant file event, until ctx is
// cancelled. cb (if non-nil) receives the report of each run.
//
// New directories created at runtime are automatically added to the watch
// list. Because every run is a full reconciliation, renames and deletes need
// no special handling beyond triggering a run.
func Watch(ctx context.Context, engine *Engine, root string, logger *slog.Logger, cb ReportCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			report, runErr := engine.Run(ctx, Options{})
			if runErr != nil {
				logger.Warn("watcher: sync failed", slog.String("error", runErr.Error()))
				continue
			}
			logger.Debug("watcher: synced",
				slog.Int("inserted", report.Inserted),
				slog.Int("updated", report.Updated),
				slog.Int("deleted", report.Deleted),
				slog.Int("failed", len(report.Failures)))
			if cb != nil {
				cb(report)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// New directories join the watch list.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			if !relevant(root, ev.Name) {
				continue
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether an event path can affect reconciliation: markdown
// files anywhere, or anything under the asset area. Temp files from atomic
// writes are ignored.
func relevant(root, abs string) bool {
	base := filepath.Base(abs)
	if strings.HasPrefix(base, ".luzzle-tmp-") {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return strings.HasSuffix(rel, ".md") || strings.HasPrefix(rel, ".assets/")
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
