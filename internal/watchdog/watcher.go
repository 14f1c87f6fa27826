package watchdog

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/angeloszaimis/governor/internal/latch"
)

// WatchLatch invokes onEngaged once when the shutdown latch becomes
// engaged, so a running host halts promptly when another process pulls
// the latch. It prefers filesystem notifications on the latch data
// directory and degrades to polling when the watcher cannot start.
func WatchLatch(ctx context.Context, l *latch.Latch, onEngaged func(), logger *slog.Logger) {
	if l.IsActive() {
		onEngaged()
		return
	}

	// The data directory must exist before it can be watched.
	if err := os.MkdirAll(l.Dir(), 0o755); err != nil {
		logger.Warn("Latch watcher unavailable, falling back to polling",
			slog.Any("err", err))
		pollLatch(ctx, l, onEngaged)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(l.Dir())
	}
	if err != nil {
		logger.Warn("Latch watcher unavailable, falling back to polling",
			slog.Any("err", err))
		pollLatch(ctx, l, onEngaged)
		return
	}
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				pollLatch(ctx, l, onEngaged)
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if l.IsActive() {
				onEngaged()
				return
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				pollLatch(ctx, l, onEngaged)
				return
			}
			logger.Warn("Latch watcher error", slog.Any("err", watchErr))
		}
	}
}

func pollLatch(ctx context.Context, l *latch.Latch, onEngaged func()) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.IsActive() {
				onEngaged()
				return
			}
		}
	}
}
