// Package watch notices when the report file is saved with new content.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/opdedupe/internal/checksum"
)

// Debounce is the quiet period after the last event before the file is re-read.
const Debounce = 200 * time.Millisecond

// ChangeCallback receives the new checksum of the report file.
type ChangeCallback func(sum string)

// Report watches the directory holding path and calls cb each time the file
// settles with a checksum different from the last one seen. Editors that
// save by rename are handled because the directory, not the file, is
// watched. It blocks until ctx is cancelled.
func Report(ctx context.Context, path string, logger *slog.Logger, cb ChangeCallback) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("watch: started", slog.String("path", abs))

	last, _ := checksum.File(abs)

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-timerCh:
			sum, err := checksum.File(abs)
			if err != nil {
				logger.Debug("watch: report unreadable", slog.String("error", err.Error()))
				continue
			}
			if sum == last {
				continue
			}
			last = sum
			logger.Debug("watch: report changed", slog.String("checksum", sum))
			if cb != nil {
				cb(sum)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}
