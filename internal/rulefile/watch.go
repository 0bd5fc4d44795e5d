package rulefile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads path through l whenever it changes, until ctx ends. The
// parent directory is watched so atomic saves (write to a temp file, then
// rename) are seen. A reload that fails to parse is logged and the
// previously registered rules stay in place.
func (l *Loader) Watch(ctx context.Context, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch rules: %w", err)
	}
	slog.Debug("watching rules file", "file", abs)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			slog.Info("rules file changed", "file", abs)
			if _, err := l.LoadFile(ctx, abs); err != nil {
				slog.Warn("rules reload failed",
					"file", abs,
					"error", err,
					"event", "rules_reload_failed",
				)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("rules watcher error", "error", err)
		}
	}
}
