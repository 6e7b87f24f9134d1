package trie

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives a freshly built trie and its words.
type ReloadFunc func(t *Trie, words []string)

// Watch rebuilds the trie whenever the word-list file at path is written
// or replaced, and hands it to onReload. Bursts of events within debounce
// collapse into one rebuild. It blocks until ctx is done. A rebuild that
// fails is logged and the previous trie stays in use.
func Watch(ctx context.Context, path string, debounce time.Duration, onReload ReloadFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating word list watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace the file, so watch the directory.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger := slog.Default().With("component", "wordlist-watcher", "path", path)
	logger.Info("watching word list")

	target := filepath.Clean(path)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		case <-fire:
			fire = nil
			t, words, err := LoadFile(path)
			if err != nil {
				logger.Error("reloading word list failed", "error", err)
				continue
			}
			logger.Info("word list reloaded", "words", t.Len())
			onReload(t, words)
		}
	}
}
