// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
//
// The CLI dials the socket in the database directory and calls the
// "Stagehand" service: Status, BundleList, BundleRefresh, AssetList,
// GraphicInstances, GraphicRefresh and GraphicKill. Request and response
// types live in types.go and reuse the api DTOs so HTTP and IPC callers see
// the same shapes.
package ipc
