package graphics

import (
	"stagehand/internal/bundles"
	"stagehand/internal/logging"
)

// RecomputeAll refreshes potentiallyOutOfDate and singleInstance of every
// registration against the loaded bundles. Registrations whose bundle or
// graphic is gone are left untouched.
func (r *Registry) RecomputeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.instances.Value()
	changed := 0
	for i, inst := range current {
		bundle, ok := r.bundles.Find(inst.BundleName)
		if !ok {
			continue
		}
		updated := inst
		if graphic, ok := bundle.GraphicByURL(inst.PathName); ok {
			updated.SingleInstance = graphic.SingleInstance
		}
		updated.PotentiallyOutOfDate = Stale(inst.BundleVersion, inst.BundleGit, bundle)
		if updated.SingleInstance != inst.SingleInstance || updated.PotentiallyOutOfDate != inst.PotentiallyOutOfDate {
			current[i] = updated
			changed++
		}
	}
	if changed == 0 {
		return
	}
	if err := r.instances.Set(current); err != nil {
		logging.WarnWithContext(r.logger, "recomputing graphic staleness failed", "graphic_staleness_failed",
			logging.Error(err),
		)
		return
	}
	r.logger.Info("graphic staleness recomputed", logging.Int("updated", changed))
}

// WatchBundles recomputes staleness whenever the bundle set or a bundle's git
// revision changes. The returned function stops watching.
func (r *Registry) WatchBundles(manager *bundles.Manager) func() {
	return manager.OnChange(func(evt bundles.Event) {
		r.logger.Debug("bundle change observed",
			logging.String(logging.FieldBundle, evt.Name),
			logging.String(logging.FieldEventType, string(evt.Kind)),
		)
		r.RecomputeAll()
	})
}
