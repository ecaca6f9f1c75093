// ABOUTME: Tests for the fsnotify input watcher.
// ABOUTME: Rewrites a temp file until the debounced callback fires with the new contents.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWatchFileReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, newLogger(io.Discard, false), func(raw string) { changes <- raw })
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case got := <-changes:
			if !strings.HasPrefix(got, "v2-") {
				t.Errorf("expected new contents, got %q", got)
			}
			cancel()
			if err := <-done; err != context.Canceled {
				t.Errorf("expected context.Canceled, got %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte(fmt.Sprintf("v2-%d", i)), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for change callback")
		}
	}
}

func TestWatchFileMissingDirectory(t *testing.T) {
	err := watchFile(context.Background(), filepath.Join(t.TempDir(), "gone", "x.md"), newLogger(io.Discard, false), func(string) {})
	if err == nil {
		t.Fatal("expected error watching a missing directory")
	}
}
