// Package daemon coordinates the long-running Stagehand process.
//
// It wires configuration, the replicant registry, the bundle manager, the
// asset registry and the graphics registry into a single lifecycle with
// flock-based locking to prevent multiple instances. While running it owns the
// asset and bundle watchers, the websocket hub and the HTTP server that serves
// the operator API, the asset gateway and the socket endpoint.
//
// Keep orchestration logic here: asset, graphic and bundle behavior lives in
// their own packages while the daemon focuses on startup, shutdown, and
// operator-facing queries.
package daemon
