package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watch reloads the store whenever one of its catalog files changes.
// Directories are watched rather than files so that editors replacing a
// file by rename are still seen. Bursts of events within debounce collapse
// into one reload. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onReload func(*Snapshot, error)) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	targets := make(map[string]bool, len(s.paths))
	dirs := make(map[string]bool)
	for _, p := range s.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		s.log.Debug("Watching catalog directory", "dir", dir)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := false

	s.log.Info("Catalog watcher started", "files", len(targets), "debounce", debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !targets[abs] {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			s.log.Debug("Catalog change detected", "path", event.Name, "op", event.Op.String())
			if !pending {
				pending = true
				timer.Reset(debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.log.Error("Watcher error", "error", err)

		case <-timer.C:
			pending = false
			snap, err := s.Reload()
			if onReload != nil {
				onReload(snap, err)
			}
		}
	}
}
