package bundles

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"stagehand/internal/logging"
)

// EventKind classifies a bundle change.
type EventKind string

const (
	EventAdded      EventKind = "added"
	EventChanged    EventKind = "changed"
	EventRemoved    EventKind = "removed"
	EventGitChanged EventKind = "git"
)

// Event describes a change to one bundle. Bundle is nil for EventRemoved.
type Event struct {
	Kind   EventKind
	Name   string
	Bundle *Bundle
}

// Manager holds the loaded bundle set.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	bundles map[string]*Bundle

	listenMu     sync.Mutex
	listeners    map[int]func(Event)
	nextListener int
}

// NewManager creates a manager for the bundles installed under dir.
func NewManager(dir string, logger *slog.Logger) *Manager {
	return &Manager{
		dir:       dir,
		logger:    logging.NewComponentLogger(logger, "bundles"),
		bundles:   make(map[string]*Bundle),
		listeners: make(map[int]func(Event)),
	}
}

// Dir returns the bundles directory.
func (m *Manager) Dir() string { return m.dir }

// Load scans the bundles directory. A bundle that fails to load is logged and
// skipped; only an unreadable bundles directory is an error.
func (m *Manager) Load() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read bundles directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := m.Reload(entry.Name()); err != nil {
			if errors.Is(err, ErrNoManifest) {
				m.logger.Debug("directory without manifest ignored", logging.String(logging.FieldBundle, entry.Name()))
				continue
			}
			logging.WarnWithContext(m.logger, "bundle skipped", "bundle_load_failed",
				logging.String(logging.FieldBundle, entry.Name()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "bundle graphics and assets are unavailable"),
				logging.String(logging.FieldErrorHint, "fix the bundle manifest; it is reloaded automatically"),
			)
		}
	}
	m.logger.Info("bundles loaded", logging.Int("count", len(m.All())))
	return nil
}

// Find returns the bundle called name.
func (m *Manager) Find(name string) (*Bundle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bundles[name]
	return b, ok
}

// All returns every loaded bundle ordered by name.
func (m *Manager) All() []*Bundle {
	m.mu.RLock()
	out := slices.Collect(maps.Values(m.bundles))
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reload re-reads a single bundle and notifies listeners of the outcome. A
// bundle whose directory or manifest disappeared is removed. On a load error
// the previous snapshot stays in place.
func (m *Manager) Reload(name string) (*Event, error) {
	dir := filepath.Join(m.dir, name)
	next, err := loadBundle(dir)
	if errors.Is(err, ErrNoManifest) {
		m.mu.Lock()
		_, existed := m.bundles[name]
		delete(m.bundles, name)
		m.mu.Unlock()
		if !existed {
			return nil, err
		}
		evt := Event{Kind: EventRemoved, Name: name}
		m.emit(evt)
		return &evt, nil
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	prev, existed := m.bundles[name]
	m.bundles[name] = next
	m.mu.Unlock()

	evt := Event{Kind: EventAdded, Name: name, Bundle: next}
	if existed {
		evt.Kind = EventChanged
		if !sameGit(prev.Git, next.Git) && prev.Version == next.Version {
			evt.Kind = EventGitChanged
		}
	}
	m.emit(evt)
	return &evt, nil
}

// OnChange registers fn for bundle events and returns a function that removes it.
func (m *Manager) OnChange(fn func(Event)) func() {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.listenMu.Lock()
		defer m.listenMu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) emit(evt Event) {
	m.logger.Debug("bundle event",
		logging.String(logging.FieldBundle, evt.Name),
		logging.String("kind", string(evt.Kind)),
	)
	m.listenMu.Lock()
	listeners := make([]func(Event), 0, len(m.listeners))
	for _, id := range slices.Sorted(maps.Keys(m.listeners)) {
		listeners = append(listeners, m.listeners[id])
	}
	m.listenMu.Unlock()
	for _, fn := range listeners {
		fn(evt)
	}
}

func loadBundle(dir string) (*Bundle, error) {
	manifest, _, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := manifest.normalize(filepath.Base(dir)); err != nil {
		return nil, err
	}
	git, err := ReadGit(dir)
	if err != nil {
		return nil, fmt.Errorf("read git metadata: %w", err)
	}
	return &Bundle{
		Name:            manifest.Name,
		Dir:             dir,
		Version:         manifest.Version,
		Git:             git,
		Graphics:        manifest.Graphics,
		AssetCategories: manifest.AssetCategories,
		SoundCues:       manifest.SoundCues,
	}, nil
}
