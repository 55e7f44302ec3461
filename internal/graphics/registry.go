package graphics

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stagehand/internal/bundles"
	"stagehand/internal/logging"
	"stagehand/internal/replicant"
)

//go:embed schema.cue
var instanceSchema string

const (
	// Namespace holds the daemon's own collections.
	Namespace = "stagehand"
	// CollectionName is the collection of graphic registrations.
	CollectionName = "graphics:instances"
)

// Outgoing events.
const (
	EventOccupied      = "graphic:occupied"
	EventAvailable     = "graphic:available"
	EventBundleRefresh = "graphic:bundleRefresh"
	EventRefreshAll    = "graphic:refreshAll"
	EventRefresh       = "graphic:refresh"
	EventKill          = "graphic:kill"
)

// BundleProvider resolves loaded bundles.
type BundleProvider interface {
	Find(name string) (*bundles.Bundle, bool)
}

// Broadcaster sends an event to every connected client without blocking.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// Registry coordinates graphic registrations. Every check-then-act sequence
// runs under mu.
type Registry struct {
	bundles BundleProvider
	events  Broadcaster
	grace   time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	instances *replicant.Replicant[Instance]
}

// NewRegistry declares the instances collection and returns a registry that
// holds closed registrations for grace before removing them.
func NewRegistry(reg *replicant.Registry, provider BundleProvider, events Broadcaster, grace time.Duration, logger *slog.Logger) (*Registry, error) {
	instances, err := replicant.Declare(reg, CollectionName, Namespace, replicant.Options[Instance]{
		DefaultValue: []Instance{},
		Schema:       instanceSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("declare graphic instances: %w", err)
	}
	return &Registry{
		bundles:   provider,
		events:    events,
		grace:     grace,
		logger:    logging.NewComponentLogger(logger, "graphics"),
		now:       time.Now,
		instances: instances,
	}, nil
}

// Instances returns a snapshot of every registration.
func (r *Registry) Instances() []Instance {
	return r.instances.Value()
}

// RegisterSocket claims pathName for socketID. It reports false when the
// bundle or graphic is unknown or a single-instance graphic is held open by
// another connection.
func (r *Registry) RegisterSocket(req RegisterRequest, socketID, ip string) bool {
	bundle, ok := r.bundles.Find(req.BundleName)
	if !ok {
		r.logger.Debug("registration for unknown bundle",
			logging.String(logging.FieldBundle, req.BundleName),
			logging.String(logging.FieldSocketID, socketID),
		)
		return false
	}
	graphic, ok := bundle.GraphicByURL(req.PathName)
	if !ok {
		r.logger.Debug("registration for unknown graphic",
			logging.String(logging.FieldPathName, req.PathName),
			logging.String(logging.FieldSocketID, socketID),
		)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, holder, held := r.findOpen(req.PathName); held && graphic.SingleInstance {
		return holder.SocketID == socketID
	}

	var err error
	if idx, existing, found := r.findSocket(socketID); found {
		existing.Open = true
		err = r.instances.Splice(idx, 1, existing)
	} else {
		timestamp := req.Timestamp
		if timestamp <= 0 {
			timestamp = r.now().UnixMilli()
		}
		err = r.instances.Push(Instance{
			BundleName:           req.BundleName,
			PathName:             req.PathName,
			SocketID:             socketID,
			IPv4:                 ip,
			Timestamp:            timestamp,
			SingleInstance:       graphic.SingleInstance,
			Open:                 true,
			PotentiallyOutOfDate: Stale(req.BundleVersion, req.BundleGit, bundle),
			BundleGit:            req.BundleGit,
			BundleVersion:        req.BundleVersion,
		})
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "graphic registration rejected", "graphic_register_failed",
			logging.String(logging.FieldPathName, req.PathName),
			logging.String(logging.FieldSocketID, socketID),
			logging.Error(err),
		)
		return false
	}
	r.logger.Debug("graphic registered",
		logging.String(logging.FieldPathName, req.PathName),
		logging.String(logging.FieldSocketID, socketID),
		logging.Bool("single_instance", graphic.SingleInstance),
	)
	// Occupancy notices go out under mu so they reach the hub in mutation order.
	if graphic.SingleInstance {
		r.events.Broadcast(EventOccupied, req.PathName)
	}
	return true
}

// QueryAvailability reports whether pathName has no open registration.
func (r *Registry) QueryAvailability(pathName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _, held := r.findOpen(pathName)
	return !held
}

// Disconnect closes the registration of socketID, if any, and schedules its
// removal after the grace period.
func (r *Registry) Disconnect(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, inst, found := r.findSocket(socketID)
	if !found {
		return
	}
	inst.Open = false
	if err := r.instances.Splice(idx, 1, inst); err != nil {
		logging.WarnWithContext(r.logger, "closing graphic registration failed", "graphic_close_failed",
			logging.String(logging.FieldSocketID, socketID),
			logging.Error(err),
		)
	}
	if inst.SingleInstance {
		r.events.Broadcast(EventAvailable, inst.PathName)
	}
	time.AfterFunc(r.grace, func() { r.removeClosed(socketID) })
}

func (r *Registry) removeClosed(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, inst, found := r.findSocket(socketID)
	if !found || inst.Open {
		return
	}
	if err := r.instances.Splice(idx, 1); err != nil {
		logging.WarnWithContext(r.logger, "removing graphic registration failed", "graphic_remove_failed",
			logging.String(logging.FieldSocketID, socketID),
			logging.Error(err),
		)
		return
	}
	r.logger.Debug("graphic registration removed",
		logging.String(logging.FieldPathName, inst.PathName),
		logging.String(logging.FieldSocketID, socketID),
	)
}

// RequestBundleRefresh asks every page of bundleName to reload.
func (r *Registry) RequestBundleRefresh(bundleName string) {
	r.events.Broadcast(EventBundleRefresh, bundleName)
}

// RequestRefreshAll asks every instance of the graphic at pathName to reload.
func (r *Registry) RequestRefreshAll(pathName string) {
	r.events.Broadcast(EventRefreshAll, pathName)
}

// RequestRefresh asks one instance to reload.
func (r *Registry) RequestRefresh(inst Instance) {
	r.events.Broadcast(EventRefresh, inst)
}

// RequestKill asks one instance to close itself.
func (r *Registry) RequestKill(inst Instance) {
	r.events.Broadcast(EventKill, inst)
}

// Lookup returns the registration of socketID.
func (r *Registry) Lookup(socketID string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, inst, found := r.findSocket(socketID)
	return inst, found
}

func (r *Registry) findOpen(pathName string) (int, Instance, bool) {
	return r.instances.Find(func(inst Instance) bool {
		return inst.Open && inst.PathName == pathName
	})
}

func (r *Registry) findSocket(socketID string) (int, Instance, bool) {
	return r.instances.Find(func(inst Instance) bool {
		return inst.SocketID == socketID
	})
}
