package replicant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"stagehand/internal/logging"
)

// ErrSchema is returned when a mutation would leave a replicant in a state its
// schema rejects.
var ErrSchema = errors.New("replicant schema violation")

// Method names the kind of operation applied to a replicant value.
type Method string

const (
	MethodPush   Method = "push"
	MethodSplice Method = "splice"
	MethodSet    Method = "overwrite"
)

// Options control how a replicant is declared.
type Options[T any] struct {
	DefaultValue []T
	Persistent   bool
	// SchemaPath points at a CUE file defining #Value; Schema holds the same
	// source inline. SchemaPath wins when both are set.
	SchemaPath string
	Schema     string
}

// Operation describes one mutation.
type Operation[T any] struct {
	Method      Method `json:"method"`
	Start       int    `json:"start,omitempty"`
	DeleteCount int    `json:"deleteCount,omitempty"`
	Items       []T    `json:"items,omitempty"`
}

// Change is delivered to listeners after a mutation is applied.
type Change[T any] struct {
	Name       string         `json:"name"`
	Namespace  string         `json:"namespace"`
	Revision   int64          `json:"revision"`
	Operations []Operation[T] `json:"operations"`
	Value      []T            `json:"-"`
}

// Replicant is a live, ordered collection shared with subscribed clients.
type Replicant[T any] struct {
	name       string
	namespace  string
	persistent bool
	schema     *Schema
	registry   *Registry

	mu       sync.Mutex
	value    []T
	revision int64

	notifyMu     sync.Mutex
	listeners    map[int]func(Change[T])
	nextListener int
}

// Name returns the replicant name.
func (r *Replicant[T]) Name() string { return r.name }

// Namespace returns the replicant namespace.
func (r *Replicant[T]) Namespace() string { return r.namespace }

// Value returns a copy of the current value.
func (r *Replicant[T]) Value() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.value)
}

// Revision returns the number of mutations applied since declaration.
func (r *Replicant[T]) Revision() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// Len returns the number of elements.
func (r *Replicant[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.value)
}

// Find returns the index and element of the first entry matching fn.
func (r *Replicant[T]) Find(fn func(T) bool) (int, T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.value {
		if fn(item) {
			return i, item, true
		}
	}
	var zero T
	return -1, zero, false
}

// Push appends items as a single operation.
func (r *Replicant[T]) Push(items ...T) error {
	if len(items) == 0 {
		return nil
	}
	op := Operation[T]{Method: MethodPush, Items: slices.Clone(items)}
	return r.mutate(op, func(current []T) ([]T, error) {
		return append(current, items...), nil
	})
}

// Splice removes deleteCount elements at start and inserts items in their place.
func (r *Replicant[T]) Splice(start, deleteCount int, items ...T) error {
	op := Operation[T]{Method: MethodSplice, Start: start, DeleteCount: deleteCount, Items: slices.Clone(items)}
	return r.mutate(op, func(current []T) ([]T, error) {
		if start < 0 || deleteCount < 0 || start > len(current) {
			return nil, fmt.Errorf("splice %d/%d out of range for length %d", start, deleteCount, len(current))
		}
		end := min(start+deleteCount, len(current))
		return slices.Concat(current[:start], items, current[end:]), nil
	})
}

// Set replaces the whole value.
func (r *Replicant[T]) Set(items []T) error {
	op := Operation[T]{Method: MethodSet, Items: slices.Clone(items)}
	return r.mutate(op, func([]T) ([]T, error) {
		return slices.Clone(items), nil
	})
}

// OnChange registers fn for every subsequent change and returns a function
// that removes it.
func (r *Replicant[T]) OnChange(fn func(Change[T])) func() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if r.listeners == nil {
		r.listeners = make(map[int]func(Change[T]))
	}
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	return func() {
		r.notifyMu.Lock()
		defer r.notifyMu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Replicant[T]) mutate(op Operation[T], apply func([]T) ([]T, error)) error {
	r.mu.Lock()
	next, err := apply(slices.Clone(r.value))
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%s:%s: %w", r.namespace, r.name, err)
	}
	if r.schema != nil {
		if err := r.schema.Validate(next); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s:%s: %v", ErrSchema, r.namespace, r.name, err)
		}
	}
	r.value = next
	r.revision++
	change := Change[T]{
		Name:       r.name,
		Namespace:  r.namespace,
		Revision:   r.revision,
		Operations: []Operation[T]{op},
		Value:      slices.Clone(next),
	}
	// Taking notifyMu before releasing mu keeps delivery in revision order.
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()

	if r.persistent {
		r.registry.save(r.namespace, r.name, change.Revision, change.Value)
	}
	for _, id := range sortedKeys(r.listeners) {
		r.listeners[id](change)
	}
	r.registry.publish(change.Namespace, change.Name, change.Revision, change.Operations)
	return nil
}

func (r *Replicant[T]) snapshot() (json.RawMessage, int64, error) {
	r.mu.Lock()
	value := slices.Clone(r.value)
	revision := r.revision
	r.mu.Unlock()
	if value == nil {
		value = []T{}
	}
	data, err := json.Marshal(value)
	return data, revision, err
}

func (r *Replicant[T]) descriptor() Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Descriptor{
		Namespace:  r.namespace,
		Name:       r.name,
		Revision:   r.revision,
		Length:     len(r.value),
		Persistent: r.persistent,
	}
}

func (r *Replicant[T]) restore(ctx context.Context, store Store, defaults []T, logger *slog.Logger) {
	r.value = slices.Clone(defaults)
	if !r.persistent || store == nil {
		return
	}
	data, ok, err := store.Load(ctx, r.namespace, r.name)
	if err != nil {
		logging.WarnWithContext(logger, "replicant load failed", "replicant_load_failed",
			logging.String(logging.FieldNamespace, r.namespace),
			logging.String("replicant", r.name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "replicant starts from its default value"),
		)
		return
	}
	if !ok {
		return
	}
	var persisted []T
	if err := json.Unmarshal(data, &persisted); err != nil {
		logging.WarnWithContext(logger, "persisted replicant is not decodable", "replicant_decode_failed",
			logging.String(logging.FieldNamespace, r.namespace),
			logging.String("replicant", r.name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "replicant starts from its default value"),
		)
		return
	}
	if r.schema != nil {
		if err := r.schema.Validate(persisted); err != nil {
			logging.WarnWithContext(logger, "persisted replicant fails schema", "replicant_schema_mismatch",
				logging.String(logging.FieldNamespace, r.namespace),
				logging.String("replicant", r.name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "replicant starts from its default value"),
			)
			return
		}
	}
	r.value = persisted
}
