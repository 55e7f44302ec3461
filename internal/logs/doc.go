// Package logs reads the daemon's current log file for the CLI.
//
// Tail returns the last lines of a file along with the offset where reading
// stopped; Follow resumes from that offset and delivers lines as the daemon
// appends them.
package logs
