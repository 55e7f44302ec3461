package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"

	"stagehand/internal/logging"
)

// EventKind classifies an ingest event.
type EventKind int

const (
	EventAdd EventKind = iota
	EventChange
	EventUnlink
	// EventReady follows the adds of the initial scan.
	EventReady
)

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	case EventUnlink:
		return "unlink"
	case EventReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Event is one filesystem observation for a tracked file.
type Event struct {
	Kind EventKind
	Path string
}

// Watcher observes category directories and reports tracked files.
type Watcher struct {
	categories []Category
	byDir      map[string][]Category
	logger     *slog.Logger
}

// NewWatcher creates a watcher over categories.
func NewWatcher(categories []Category, logger *slog.Logger) *Watcher {
	byDir := make(map[string][]Category, len(categories))
	for _, c := range categories {
		dir := filepath.Clean(c.Dir)
		byDir[dir] = append(byDir[dir], c)
	}
	return &Watcher{
		categories: categories,
		byDir:      byDir,
		logger:     logging.NewComponentLogger(logger, "asset-watcher"),
	}
}

// Run creates missing category directories, reports every existing tracked
// file followed by EventReady, then streams live events to out until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context, out chan<- Event) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create asset watcher: %w", err)
	}
	defer fsw.Close()

	dirs := make([]string, 0, len(w.byDir))
	for dir := range w.byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create asset directory %q: %w", dir, err)
		}
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch asset directory %q: %w", dir, err)
		}
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("scan asset directory %q: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if !w.tracked(path) {
				continue
			}
			if !send(ctx, out, Event{Kind: EventAdd, Path: path}) {
				return nil
			}
		}
	}
	if !send(ctx, out, Event{Kind: EventReady}) {
		return nil
	}
	w.logger.Info("asset watcher ready", logging.Int("directories", len(dirs)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case fsErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "asset watcher error", "asset_watch_error",
				logging.Error(fsErr),
				logging.String(logging.FieldImpact, "asset changes may be missed until the next restart"),
			)
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			evt, ok := w.translate(event)
			if !ok {
				continue
			}
			if !send(ctx, out, evt) {
				return nil
			}
		}
	}
}

func (w *Watcher) translate(event fsnotify.Event) (Event, bool) {
	if !w.tracked(event.Name) {
		return Event{}, false
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Event{Kind: EventUnlink, Path: event.Name}, true
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				w.logger.Debug("stat created asset failed", logging.String(logging.FieldPath, event.Name), logging.Error(err))
			}
			return Event{}, false
		}
		if info.IsDir() {
			return Event{}, false
		}
		return Event{Kind: EventAdd, Path: event.Name}, true
	case event.Has(fsnotify.Write):
		return Event{Kind: EventChange, Path: event.Name}, true
	default:
		return Event{}, false
	}
}

func (w *Watcher) tracked(path string) bool {
	for _, c := range w.byDir[filepath.Dir(path)] {
		if c.Matches(path) {
			return true
		}
	}
	return false
}

func send(ctx context.Context, out chan<- Event, evt Event) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
