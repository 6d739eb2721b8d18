package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/cellarsync/cellarsync/internal/utils"
)

const (
	watchDebounce   = 100 * time.Millisecond
	eventBufferSize = 16
)

// Watch calls onChange after the config file at path is written, created or
// replaced, coalescing bursts of events. onChange runs on the caller's
// goroutine. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func()) error {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return err
	}

	// the directory is watched because Save replaces the file by rename
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	events := make(chan notify.EventInfo, eventBufferSize)
	if err := notify.Watch(dir, events, notify.All); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer notify.Stop(events)
	slog.Info("config watch start", "path", path)

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("config watch stop", "path", path)
			return nil
		case ei := <-events:
			if filepath.Base(ei.Path()) != name {
				continue
			}
			slog.Debug("config event", "event", ei.Event(), "path", ei.Path())
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
			onChange()
		}
	}
}
