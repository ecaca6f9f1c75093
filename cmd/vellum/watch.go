// ABOUTME: Watches the input file with fsnotify and hands each new version to a callback.
// ABOUTME: Watches the parent directory so editors that save by rename are still seen; changes are debounced.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// watchFile calls onChange with the file's contents after every settled
// change. Unchanged contents are skipped. Blocks until ctx is cancelled.
func watchFile(ctx context.Context, path string, logger *log.Logger, onChange func(raw string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	last, _ := os.ReadFile(abs)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	logger.Printf("component=cli action=watch path=%s", abs)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("component=cli action=watch_error path=%s err=%v", abs, err)

		case <-timer.C:
			data, err := os.ReadFile(abs)
			if err != nil {
				// mid-rename; the create event re-arms the timer
				continue
			}
			if string(data) == string(last) {
				continue
			}
			last = data
			logger.Printf("component=cli action=input_changed path=%s bytes=%d", abs, len(data))
			onChange(string(data))
		}
	}
}
