// Package daemonctl launches and stops a background stagehand daemon on
// behalf of the CLI.
package daemonctl
