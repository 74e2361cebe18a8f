package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/subguard/guardian/household"
	"github.com/subguard/guardian/internal/logger"
)

// PolicyWatcher watches household policy files and reloads the matching
// engines when a file changes. Editors often write via rename, so the
// parent directories are watched rather than the files themselves.
type PolicyWatcher struct {
	watcher  *fsnotify.Watcher
	manager  *household.Manager
	paths    map[string][]string // absolute policy file path -> household IDs
	debounce time.Duration
}

// NewPolicyWatcher creates a watcher over every policy file known to the
// manager.
func NewPolicyWatcher(manager *household.Manager) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	pw := &PolicyWatcher{
		watcher:  watcher,
		manager:  manager,
		paths:    make(map[string][]string),
		debounce: 250 * time.Millisecond,
	}

	dirs := make(map[string]bool)
	for _, id := range manager.List() {
		h, err := manager.Get(id)
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(h.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve policy path %q: %w", h.PolicyPath, err)
		}
		pw.paths[abs] = append(pw.paths[abs], id)
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	return pw, nil
}

// Start processes file events until the context is cancelled. Change
// bursts within the debounce window collapse into a single reload.
func (pw *PolicyWatcher) Start(ctx context.Context) error {
	defer pw.watcher.Close()

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || len(pw.paths[abs]) == 0 {
				continue
			}
			pending[abs] = true
			if timer == nil {
				timer = time.NewTimer(pw.debounce)
			} else {
				timer.Reset(pw.debounce)
			}
			fire = timer.C

		case <-fire:
			for path := range pending {
				pw.reloadPath(path)
			}
			pending = make(map[string]bool)
			fire = nil

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			if err != nil {
				logger.Warn("policy watcher error", "error", err)
			}
		}
	}
}

func (pw *PolicyWatcher) reloadPath(path string) {
	for _, id := range pw.paths[path] {
		if err := pw.manager.Reload(id); err != nil {
			logger.Error("hot reload failed", "household", id, "path", path, "error", err)
			continue
		}
		logger.Info("policies hot reloaded", "household", id, "path", path)
	}
}
