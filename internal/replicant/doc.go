// Package replicant implements the shared, observable collections that the
// asset and graphics registries publish to dashboard and graphic clients.
//
// A replicant is declared once per (namespace, name) and holds an ordered
// value that is mutated only through Push, Splice and Set. Every mutation
// produces exactly one Change carrying the operations applied and a revision
// number; listeners attached with OnChange and registry-wide subscribers see
// changes in revision order. Values can be validated against a CUE schema and
// persisted to SQLite so they survive daemon restarts.
//
// Change listeners run synchronously while the replicant's notification lock
// is held and must not mutate the same replicant from inside the callback.
package replicant
