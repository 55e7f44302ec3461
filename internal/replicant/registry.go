package replicant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"stagehand/internal/logging"
)

// Descriptor summarizes a declared replicant.
type Descriptor struct {
	Namespace  string `json:"namespace"`
	Name       string `json:"name"`
	Revision   int64  `json:"revision"`
	Length     int    `json:"length"`
	Persistent bool   `json:"persistent"`
}

// Envelope is the transport-neutral form of a Change published to registry
// subscribers.
type Envelope struct {
	Namespace  string          `json:"namespace"`
	Name       string          `json:"name"`
	Revision   int64           `json:"revision"`
	Operations json.RawMessage `json:"operations"`
}

type declared interface {
	snapshot() (json.RawMessage, int64, error)
	descriptor() Descriptor
}

type key struct {
	namespace string
	name      string
}

// Registry owns every declared replicant, its persistence and its subscribers.
type Registry struct {
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	entries map[key]declared

	subsMu  sync.RWMutex
	subs    map[int]func(Envelope)
	nextSub int
}

// NewRegistry creates a registry. store may be nil, in which case persistent
// replicants behave like ephemeral ones.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "replicants"),
		entries: make(map[key]declared),
		subs:    make(map[int]func(Envelope)),
	}
}

// Declare returns the replicant for (namespace, name), creating it on first
// use. Declaring an existing name with a different element type is an error.
func Declare[T any](reg *Registry, name, namespace string, opts Options[T]) (*Replicant[T], error) {
	if name == "" || namespace == "" {
		return nil, fmt.Errorf("declare replicant: name and namespace are required")
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	k := key{namespace: namespace, name: name}
	if existing, ok := reg.entries[k]; ok {
		typed, ok := existing.(*Replicant[T])
		if !ok {
			return nil, fmt.Errorf("declare replicant %s:%s: already declared with a different type", namespace, name)
		}
		return typed, nil
	}

	schema, err := resolveSchema(opts.SchemaPath, opts.Schema)
	if err != nil {
		return nil, fmt.Errorf("declare replicant %s:%s: %w", namespace, name, err)
	}

	rep := &Replicant[T]{
		name:       name,
		namespace:  namespace,
		persistent: opts.Persistent,
		schema:     schema,
		registry:   reg,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rep.restore(ctx, reg.store, opts.DefaultValue, reg.logger)

	reg.entries[k] = rep
	reg.logger.Debug("replicant declared",
		logging.String(logging.FieldNamespace, namespace),
		logging.String("replicant", name),
		logging.Bool("persistent", opts.Persistent),
	)
	return rep, nil
}

// Subscribe registers fn for changes of every replicant and returns a
// function that removes it.
func (reg *Registry) Subscribe(fn func(Envelope)) func() {
	reg.subsMu.Lock()
	defer reg.subsMu.Unlock()
	id := reg.nextSub
	reg.nextSub++
	reg.subs[id] = fn
	return func() {
		reg.subsMu.Lock()
		defer reg.subsMu.Unlock()
		delete(reg.subs, id)
	}
}

// Read returns the JSON-encoded value and revision of a declared replicant.
func (reg *Registry) Read(namespace, name string) (json.RawMessage, int64, bool, error) {
	reg.mu.Lock()
	entry, ok := reg.entries[key{namespace: namespace, name: name}]
	reg.mu.Unlock()
	if !ok {
		return nil, 0, false, nil
	}
	data, revision, err := entry.snapshot()
	if err != nil {
		return nil, 0, true, fmt.Errorf("encode replicant %s:%s: %w", namespace, name, err)
	}
	return data, revision, true, nil
}

// List describes every declared replicant ordered by namespace then name.
func (reg *Registry) List() []Descriptor {
	reg.mu.Lock()
	entries := slices.Collect(maps.Values(reg.entries))
	reg.mu.Unlock()

	out := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.descriptor())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (reg *Registry) publish(namespace, name string, revision int64, operations any) {
	reg.subsMu.RLock()
	subs := make([]func(Envelope), 0, len(reg.subs))
	for _, id := range sortedKeys(reg.subs) {
		subs = append(subs, reg.subs[id])
	}
	reg.subsMu.RUnlock()
	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(operations)
	if err != nil {
		reg.logger.Error("encode replicant operations",
			logging.String(logging.FieldNamespace, namespace),
			logging.String("replicant", name),
			logging.Error(err),
		)
		return
	}
	env := Envelope{Namespace: namespace, Name: name, Revision: revision, Operations: data}
	for _, fn := range subs {
		fn(env)
	}
}

func (reg *Registry) save(namespace, name string, revision int64, value any) {
	if reg.store == nil {
		return
	}
	data, err := json.Marshal(value)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = reg.store.Save(ctx, namespace, name, revision, data)
		cancel()
	}
	if err != nil {
		logging.WarnWithContext(reg.logger, "replicant persist failed", "replicant_persist_failed",
			logging.String(logging.FieldNamespace, namespace),
			logging.String("replicant", name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "value will not survive a restart"),
			logging.String(logging.FieldErrorHint, "check the replicant database in the db directory"),
		)
	}
}

func sortedKeys[V any](m map[int]V) []int {
	return slices.Sorted(maps.Keys(m))
}
