// Package bundles discovers and loads the bundles installed under the bundles
// directory.
//
// Each bundle lives in its own directory with a bundle.toml (or bundle.yaml)
// manifest declaring its graphics, asset categories and sound cues. The
// Manager keeps an immutable snapshot per bundle, including the git revision
// checked out in the bundle directory, and notifies listeners when a bundle is
// added, changed, removed or moves to a different commit. The Watcher drives
// those reloads from filesystem events.
package bundles
