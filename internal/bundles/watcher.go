package bundles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"stagehand/internal/logging"
)

// Watcher reloads bundles when their manifest or git refs change.
type Watcher struct {
	manager   *Manager
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	logger    *slog.Logger
}

// NewWatcher creates a watcher for the manager's bundles directory.
func NewWatcher(manager *Manager, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		manager:   manager,
		fsWatcher: fsw,
		debounce:  debounce,
		logger:    logging.NewComponentLogger(logger, "bundle-watcher"),
	}, nil
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsWatcher.Close()

	if err := w.fsWatcher.Add(w.manager.Dir()); err != nil {
		return fmt.Errorf("watching directory %s: %w", w.manager.Dir(), err)
	}
	entries, err := os.ReadDir(w.manager.Dir())
	if err != nil {
		return fmt.Errorf("read bundles directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			w.watchBundle(entry.Name())
		}
	}

	timers := make(map[string]*time.Timer)
	fired := make(chan string, 16)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			name, relevant := w.bundleFor(event)
			if !relevant {
				continue
			}
			if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == w.manager.Dir() {
				w.watchBundle(name)
			}
			if t, exists := timers[name]; exists {
				t.Reset(w.debounce)
				continue
			}
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case fired <- name:
				case <-ctx.Done():
				}
			})

		case name := <-fired:
			delete(timers, name)
			if _, err := w.manager.Reload(name); err != nil && !errors.Is(err, ErrNoManifest) {
				logging.WarnWithContext(w.logger, "bundle reload failed", "bundle_reload_failed",
					logging.String(logging.FieldBundle, name),
					logging.Error(err),
					logging.String(logging.FieldImpact, "previous bundle snapshot stays active"),
				)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("bundle watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) watchBundle(name string) {
	dir := filepath.Join(w.manager.Dir(), name)
	for _, target := range []string{dir, filepath.Join(dir, ".git"), filepath.Join(dir, ".git", "refs", "heads")} {
		if info, err := os.Stat(target); err != nil || !info.IsDir() {
			continue
		}
		if err := w.fsWatcher.Add(target); err != nil {
			w.logger.Debug("watch add failed", logging.String(logging.FieldPath, target), logging.Error(err))
		}
	}
}

// bundleFor maps an event path to the bundle it affects and reports whether
// it can change the bundle snapshot.
func (w *Watcher) bundleFor(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	rel, err := filepath.Rel(w.manager.Dir(), event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	name := parts[0]
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	switch {
	case len(parts) == 1:
		return name, true
	case len(parts) == 2:
		return name, parts[1] == ManifestTOML || parts[1] == ManifestYAML || parts[1] == ".git"
	default:
		return name, parts[1] == ".git" && (parts[2] == "HEAD" || parts[2] == "refs" || parts[2] == "packed-refs")
	}
}
