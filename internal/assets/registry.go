package assets

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"stagehand/internal/logging"
)

type hashResult struct {
	kind       EventKind
	path       string
	generation uint64
	digest     string
	err        error
}

// Registry applies ingest events to the asset table. All state below is owned
// by the Run goroutine; workers only report digests back to it.
type Registry struct {
	table    *Table
	digest   func(ctx context.Context, path string) (string, error)
	debounce time.Duration
	workers  chan struct{}
	logger   *slog.Logger

	results chan hashResult
	fired   chan string

	// A nil entry is a file whose digest is still being computed.
	pending   map[string]*Record
	ready     bool
	committed atomic.Bool
	// Bumped on every digest request and unlink; only the latest request
	// for a path may publish.
	generations map[string]uint64
	timers      map[string]*time.Timer
}

// NewRegistry creates a registry over table. hashWorkers bounds concurrent
// digest computations.
func NewRegistry(table *Table, hasher *Hasher, debounce time.Duration, hashWorkers int, logger *slog.Logger) *Registry {
	if hashWorkers <= 0 {
		hashWorkers = 1
	}
	if hasher == nil {
		hasher = NewHasher()
	}
	return &Registry{
		table:       table,
		digest:      hasher.Digest,
		debounce:    debounce,
		workers:     make(chan struct{}, hashWorkers),
		logger:      logging.NewComponentLogger(logger, "assets"),
		results:     make(chan hashResult),
		fired:       make(chan string),
		pending:     make(map[string]*Record),
		generations: make(map[string]uint64),
		timers:      make(map[string]*time.Timer),
	}
}

// Committed reports whether the initial scan has been published.
func (r *Registry) Committed() bool { return r.committed.Load() }

// Run consumes events until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, events <-chan Event) error {
	defer r.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.handleEvent(ctx, evt)
		case res := <-r.results:
			r.handleResult(res)
		case path := <-r.fired:
			if _, ok := r.timers[path]; !ok {
				continue
			}
			delete(r.timers, path)
			r.hash(ctx, EventChange, path)
		}
	}
}

func (r *Registry) handleEvent(ctx context.Context, evt Event) {
	switch evt.Kind {
	case EventReady:
		r.ready = true
		r.maybeCommit()
	case EventAdd:
		if !r.committed.Load() {
			r.pending[evt.Path] = nil
		}
		r.hash(ctx, EventAdd, evt.Path)
	case EventChange:
		if !r.committed.Load() {
			// Rehash as an add so the batch carries the latest content.
			r.pending[evt.Path] = nil
			r.hash(ctx, EventAdd, evt.Path)
			return
		}
		r.scheduleChange(ctx, evt.Path)
	case EventUnlink:
		r.generations[evt.Path]++
		if timer, ok := r.timers[evt.Path]; ok {
			timer.Stop()
			delete(r.timers, evt.Path)
		}
		if !r.committed.Load() {
			delete(r.pending, evt.Path)
			r.maybeCommit()
			return
		}
		r.remove(evt.Path)
	}
}

func (r *Registry) scheduleChange(ctx context.Context, path string) {
	if timer, ok := r.timers[path]; ok {
		timer.Reset(r.debounce)
		return
	}
	r.timers[path] = time.AfterFunc(r.debounce, func() {
		select {
		case r.fired <- path:
		case <-ctx.Done():
		}
	})
}

func (r *Registry) hash(ctx context.Context, kind EventKind, path string) {
	r.generations[path]++
	generation := r.generations[path]
	go func() {
		select {
		case r.workers <- struct{}{}:
		case <-ctx.Done():
			return
		}
		digest, err := r.digest(ctx, path)
		<-r.workers
		select {
		case r.results <- hashResult{kind: kind, path: path, generation: generation, digest: digest, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (r *Registry) handleResult(res hashResult) {
	if res.generation != r.generations[res.path] {
		r.logger.Debug("discarding superseded digest", logging.String(logging.FieldPath, res.path))
		return
	}
	if res.err != nil {
		logging.WarnWithContext(r.logger, "asset digest failed", "asset_hash_failed",
			logging.String(logging.FieldPath, res.path),
			logging.Error(res.err),
			logging.String(logging.FieldImpact, "asset will not appear in its collection"),
			logging.String(logging.FieldErrorHint, "check the file is readable"),
		)
		if !r.committed.Load() {
			delete(r.pending, res.path)
			r.maybeCommit()
		}
		return
	}

	record := ParseRecord(r.table.Root(), res.path, res.digest)
	if !r.committed.Load() {
		if _, ok := r.pending[res.path]; !ok {
			return
		}
		r.pending[res.path] = &record
		r.maybeCommit()
		return
	}
	r.upsert(record)
}

// maybeCommit publishes the initial scan once the watcher is ready and every
// pending file has a digest.
func (r *Registry) maybeCommit() {
	if r.committed.Load() || !r.ready {
		return
	}
	for _, rec := range r.pending {
		if rec == nil {
			return
		}
	}

	paths := make([]string, 0, len(r.pending))
	for path := range r.pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	type collectionKey struct{ namespace, category string }
	groups := make(map[collectionKey][]Record)
	var order []collectionKey
	for _, path := range paths {
		rec := *r.pending[path]
		k := collectionKey{rec.Namespace, rec.Category}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = appendUnique(groups[k], rec)
	}

	for _, k := range order {
		rep, ok := r.table.Lookup(k.namespace, k.category)
		if !ok {
			continue
		}
		if err := rep.Push(groups[k]...); err != nil {
			logging.WarnWithContext(r.logger, "initial asset batch rejected", "asset_batch_failed",
				logging.String(logging.FieldNamespace, k.namespace),
				logging.String(logging.FieldCategory, k.category),
				logging.Error(err),
			)
		}
	}

	r.pending = nil
	r.committed.Store(true)
	r.logger.Info("initial asset scan committed",
		logging.Int("assets", len(paths)),
		logging.Int("collections", len(order)),
	)
}

func appendUnique(records []Record, rec Record) []Record {
	for i := range records {
		if records[i].URL == rec.URL {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

func (r *Registry) upsert(record Record) {
	rep, ok := r.table.Lookup(record.Namespace, record.Category)
	if !ok {
		r.logger.Debug("asset outside known collections", logging.String("url", record.URL))
		return
	}
	var err error
	if idx, _, found := rep.Find(func(existing Record) bool { return existing.URL == record.URL }); found {
		err = rep.Splice(idx, 1, record)
	} else {
		err = rep.Push(record)
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "asset update rejected", "asset_update_failed",
			logging.String("url", record.URL),
			logging.Error(err),
		)
		return
	}
	r.logger.Debug("asset updated", logging.String("url", record.URL), logging.String("digest", record.Digest))
}

func (r *Registry) remove(path string) {
	record := ParseRecord(r.table.Root(), path, "")
	rep, ok := r.table.Lookup(record.Namespace, record.Category)
	if !ok {
		return
	}
	idx, _, found := rep.Find(func(existing Record) bool { return existing.URL == record.URL })
	if !found {
		return
	}
	if err := rep.Splice(idx, 1); err != nil {
		logging.WarnWithContext(r.logger, "asset removal rejected", "asset_remove_failed",
			logging.String("url", record.URL),
			logging.Error(err),
		)
		return
	}
	r.logger.Debug("asset removed", logging.String("url", record.URL))
}

func (r *Registry) stopTimers() {
	for path, timer := range r.timers {
		timer.Stop()
		delete(r.timers, path)
	}
}
