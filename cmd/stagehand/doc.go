// Package main hosts the stagehand CLI.
//
// Commands talk to a running daemon over its JSON-RPC unix socket. The
// daemon command runs the daemon in the foreground, and the config commands
// work without one.
package main
