// Package logging assembles structured slog loggers and formatting helpers used
// across Stagehand services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and defines the standard field keys (component, namespace,
// socket_id, ...) so registries emit data with the same shape. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
