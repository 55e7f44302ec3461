package sounds

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"stagehand/internal/assets"
	"stagehand/internal/bundles"
	"stagehand/internal/logging"
	"stagehand/internal/replicant"
)

//go:embed schema.cue
var cueSchema string

// CollectionName is the per-bundle collection of sound cues.
const CollectionName = "soundCues"

var (
	ErrUnknownCue    = errors.New("unknown sound cue")
	ErrNotAssignable = errors.New("sound cue is not assignable")
	ErrUnknownFile   = errors.New("file is not in the bundle's sounds collection")
	ErrVolume        = errors.New("volume must be between 0 and 100")
)

// AssetSource resolves the asset collection of a bundle category.
type AssetSource interface {
	Lookup(namespace, category string) (*replicant.Replicant[assets.Record], bool)
}

// Board owns the soundCues collections. mu serializes every read-modify-write
// of a cue collection together with the set of files it may point at.
type Board struct {
	source AssetSource
	logger *slog.Logger

	mu        sync.Mutex
	cues      map[string]*replicant.Replicant[Cue]
	available map[string]map[string]struct{}
}

// NewBoard declares a persistent soundCues collection for every bundle that
// declares sound cues and reconciles restored values with the manifests.
func NewBoard(reg *replicant.Registry, source AssetSource, bundleList []*bundles.Bundle, logger *slog.Logger) (*Board, error) {
	b := &Board{
		source:    source,
		logger:    logging.NewComponentLogger(logger, "sounds"),
		cues:      make(map[string]*replicant.Replicant[Cue]),
		available: make(map[string]map[string]struct{}),
	}
	for _, bundle := range bundleList {
		if len(bundle.SoundCues) == 0 {
			continue
		}
		rep, err := replicant.Declare(reg, CollectionName, bundle.Name, replicant.Options[Cue]{
			DefaultValue: defaultCues(bundle.SoundCues),
			Persistent:   true,
			Schema:       cueSchema,
		})
		if err != nil {
			return nil, fmt.Errorf("declare sound cues %s: %w", bundle.Name, err)
		}
		current := rep.Value()
		if next := reconcile(bundle.SoundCues, current); !slices.Equal(next, current) {
			if err := rep.Set(next); err != nil {
				return nil, fmt.Errorf("reconcile sound cues %s: %w", bundle.Name, err)
			}
		}
		b.cues[bundle.Name] = rep
	}
	return b, nil
}

// Watch follows the sounds asset collection of every bundle with cues and
// clears assignments whose file disappears. The returned function stops it.
func (b *Board) Watch() func() {
	var cancels []func()
	for _, namespace := range b.Namespaces() {
		rep, ok := b.source.Lookup(namespace, bundles.SoundsCategory)
		if !ok {
			continue
		}
		cancels = append(cancels, rep.OnChange(func(change replicant.Change[assets.Record]) {
			b.syncFiles(namespace, change.Value)
		}))
		seed := fileSet(rep.Value())
		b.mu.Lock()
		if _, seen := b.available[namespace]; !seen {
			b.available[namespace] = seed
		}
		b.mu.Unlock()
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Namespaces returns the bundles with sound cues, sorted.
func (b *Board) Namespaces() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.cues))
	for namespace := range b.cues {
		out = append(out, namespace)
	}
	sort.Strings(out)
	return out
}

// Cues returns the cues of namespace.
func (b *Board) Cues(namespace string) ([]Cue, bool) {
	b.mu.Lock()
	rep, ok := b.cues[namespace]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	return rep.Value(), true
}

// Assign points the cue at file, given as an asset URL or a base name within
// the bundle's sounds category. An empty file clears the assignment.
func (b *Board) Assign(namespace, name, file string) (Cue, error) {
	file = strings.TrimSpace(file)
	if file != "" && !strings.HasPrefix(file, "/") {
		file = assets.AssetURL(namespace, bundles.SoundsCategory, file)
	}
	return b.update(namespace, name, func(c *Cue, available map[string]struct{}) error {
		if !c.Assignable {
			return ErrNotAssignable
		}
		if file != "" {
			if _, ok := available[file]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownFile, file)
			}
		}
		c.File = file
		return nil
	})
}

// SetVolume sets the playback volume of the cue.
func (b *Board) SetVolume(namespace, name string, volume int) (Cue, error) {
	if volume < 0 || volume > 100 {
		return Cue{}, ErrVolume
	}
	return b.update(namespace, name, func(c *Cue, _ map[string]struct{}) error {
		c.Volume = volume
		return nil
	})
}

func (b *Board) update(namespace, name string, apply func(*Cue, map[string]struct{}) error) (Cue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rep, ok := b.cues[namespace]
	if !ok {
		return Cue{}, fmt.Errorf("%w: %s/%s", ErrUnknownCue, namespace, name)
	}
	idx, cue, found := rep.Find(func(c Cue) bool { return c.Name == name })
	if !found {
		return Cue{}, fmt.Errorf("%w: %s/%s", ErrUnknownCue, namespace, name)
	}
	if err := apply(&cue, b.available[namespace]); err != nil {
		return Cue{}, err
	}
	if err := rep.Splice(idx, 1, cue); err != nil {
		return Cue{}, err
	}
	b.logger.Info("sound cue updated",
		logging.String(logging.FieldNamespace, namespace),
		logging.String("cue", name),
		logging.String("file", cue.File),
		logging.Int("volume", cue.Volume),
	)
	return cue, nil
}

func (b *Board) syncFiles(namespace string, records []assets.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	files := fileSet(records)
	b.available[namespace] = files

	rep := b.cues[namespace]
	value := rep.Value()
	cleared := false
	for i := range value {
		if value[i].File == "" {
			continue
		}
		if _, ok := files[value[i].File]; ok {
			continue
		}
		b.logger.Info("sound cue file removed",
			logging.String(logging.FieldNamespace, namespace),
			logging.String("cue", value[i].Name),
			logging.String("file", value[i].File),
		)
		value[i].File = ""
		cleared = true
	}
	if !cleared {
		return
	}
	if err := rep.Set(value); err != nil {
		logging.WarnWithContext(b.logger, "clearing sound cue assignment failed", "sound_cue_clear_failed",
			logging.String(logging.FieldNamespace, namespace),
			logging.Error(err),
			logging.String(logging.FieldImpact, "cue keeps pointing at a missing file"),
		)
	}
}

func fileSet(records []assets.Record) map[string]struct{} {
	out := make(map[string]struct{}, len(records))
	for _, rec := range records {
		out[rec.URL] = struct{}{}
	}
	return out
}
