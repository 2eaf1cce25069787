package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "schedwidget/internal/log"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads the config file whenever it changes and passes every
// successfully parsed version to onChange. Parse errors are logged and the
// previous config stays in effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors often replace the file via rename.
	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	appLog.Debug("config watcher started", "dir", dir, "file", file)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
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
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			data, err := os.ReadFile(path)
			if err != nil {
				appLog.Warn("config reload: read failed", "path", path, "err", err.Error())
				continue
			}
			cfg, err := Parse(data)
			if err != nil {
				appLog.Error("config reload: invalid config; keeping previous", err, "path", path)
				continue
			}
			appLog.Info("config reloaded", "path", path)
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Warn("config watch error", "err", err.Error())
		}
	}
}
