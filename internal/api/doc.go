// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates bundles, asset categories and graphic
// registrations into transport-friendly DTOs that the CLI and dashboards can
// render without coupling to internal types.
//
// # Key Types
//
// DaemonStatus: lock, socket and database paths plus counters for bundles,
// assets, graphics and connected clients.
//
// BundleSummary: a loaded bundle with its graphics, categories and git revision.
//
// AssetCategorySummary: one watched category with its glob patterns and the
// number of assets it currently holds.
//
// GraphicInstance: a graphic registration as shown to operators.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds.
package api
